// This package supports browsing the filesystem at the tree level.

package fat

import (
	"reflect"
	"sort"
	"strings"

	"github.com/dsoprea/go-logging"
)

// TreeNode is one file or directory in the loaded hierarchy.
type TreeNode struct {
	name string

	isDirectory bool
	de          *DirectoryEntry

	loaded bool

	childrenFolders sort.StringSlice
	childrenFiles   sort.StringSlice

	childrenMap map[string]*TreeNode
}

// NewTreeNode returns a new TreeNode instance.
func NewTreeNode(name string, isDirectory bool, de *DirectoryEntry) (tn *TreeNode) {
	childrenList := make(sort.StringSlice, 0)
	childrenMap := make(map[string]*TreeNode)

	tn = &TreeNode{
		name:        name,
		isDirectory: isDirectory,
		de:          de,

		childrenFolders: childrenList,
		childrenFiles:   childrenList,

		childrenMap: childrenMap,
	}

	return tn
}

// Name returns the node's dotted filename.
func (tn *TreeNode) Name() string {
	return tn.name
}

// DirectoryEntry returns the directory entry the node was loaded from. Nil
// on the root node, which has no entry of its own.
func (tn *TreeNode) DirectoryEntry() *DirectoryEntry {
	return tn.de
}

// IsDirectory indicates whether the node is a directory.
func (tn *TreeNode) IsDirectory() bool {
	return tn.isDirectory
}

// ChildFolders returns the sorted names of the node's subdirectories.
func (tn *TreeNode) ChildFolders() []string {
	return tn.childrenFolders
}

// ChildFiles returns the sorted names of the node's files.
func (tn *TreeNode) ChildFiles() []string {
	return tn.childrenFiles
}

// GetChild returns the named child, or nil.
func (tn *TreeNode) GetChild(filename string) *TreeNode {
	return tn.childrenMap[filename]
}

// Lookup descends through the given path parts as far as the loaded
// children allow.
func (tn *TreeNode) Lookup(pathParts []string) (lastPathParts []string, lastNode *TreeNode, found *TreeNode) {
	if len(pathParts) == 0 {
		// We've reached and found the last part.
		return pathParts, tn, tn
	}

	childNode := tn.childrenMap[pathParts[0]]
	if childNode == nil {
		// An intermediate part was not found.
		return pathParts, tn, nil
	}

	lastPathParts, lastNode, found = childNode.Lookup(pathParts[1:])
	return lastPathParts, lastNode, found
}

// AddChild registers a child under the node, keeping the child lists in
// sorted order.
func (tn *TreeNode) AddChild(name string, isDirectory bool, de *DirectoryEntry) *TreeNode {
	childNode := NewTreeNode(name, isDirectory, de)

	// The adds are driven by directory enumeration order. Use insertion
	// sort so the children are always ordered deterministically by name.

	var list sort.StringSlice
	if isDirectory == true {
		list = tn.childrenFolders
	} else {
		list = tn.childrenFiles
	}

	insertOrEqualAt := list.Search(name)

	if insertOrEqualAt >= len(list) {
		list = append(list, name)
	} else if list[insertOrEqualAt] != name {
		leftHalf := list[:insertOrEqualAt]
		rightHalf := list[insertOrEqualAt:]
		list = append(leftHalf, append([]string{name}, rightHalf...)...)
	}

	if isDirectory == true {
		tn.childrenFolders = list
	} else {
		tn.childrenFiles = list
	}

	tn.childrenMap[name] = childNode

	return childNode
}

// Tree loads and browses the directory hierarchy of a mounted partition.
type Tree struct {
	p        *Partition
	rootNode *TreeNode
}

// NewTree returns a new Tree instance.
func NewTree(p *Partition) *Tree {
	rootNode := NewTreeNode("", true, nil)

	return &Tree{
		p:        p,
		rootNode: rootNode,
	}
}

func (tree *Tree) loadDirectory(node *TreeNode) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(err).Name(), err)
			}
		}
	}()

	dl := new(DirectoryLocation)

	if node == tree.rootNode {
		err = tree.p.FirstRootDirEntry(dl)
		log.PanicIf(err)
	} else {
		err = tree.p.FirstDirEntry(node.de.StartCluster(), dl)
		log.PanicIf(err)
	}

	for {
		de, err := tree.p.GetDirEntry(dl)
		log.PanicIf(err)

		if tree.p.IsLastDirEntry(de, dl) == true {
			break
		}

		if de.IsDeleted() != true && de.IsLongFileName() != true && de.IsVolumeId() != true {
			name := de.Name.String()

			// Subdirectories carry dot entries pointing at themselves and
			// their parent; descending through those would cycle.
			if name != "." && name != ".." {
				node.AddChild(name, de.IsDirectory(), de)
			}
		}

		err = tree.p.NextDirEntry(dl)
		log.PanicIf(err)
	}

	node.loaded = true

	return nil
}

// Load reads the root directory. Subdirectories load lazily as they are
// reached.
func (tree *Tree) Load() (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(err).Name(), err)
			}
		}
	}()

	err = tree.loadDirectory(tree.rootNode)
	log.PanicIf(err)

	return nil
}

// Lookup finds the node at the given path, loading intermediate
// directories as needed. A nil node means the path does not exist.
func (tree *Tree) Lookup(pathParts []string) (node *TreeNode, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(err).Name(), err)
			}
		}
	}()

	for {
		lastPathParts, lastNode, foundNode := tree.rootNode.Lookup(pathParts)
		if foundNode != nil {
			// Shouldn't be possible.
			if len(lastPathParts) != 0 {
				log.Panicf("it looks like we found the node but the path-parts were not exhausted")
			}

			return foundNode, nil
		}

		// If we've already loaded all children for that node, return nil
		// (find unsuccessful).
		if lastNode.loaded == true {
			return nil, nil
		}

		err := tree.loadDirectory(lastNode)
		log.PanicIf(err)
	}
}

// TreeVisitorFunc is a visitor callback over the loaded hierarchy.
type TreeVisitorFunc func(pathParts []string, node *TreeNode) (err error)

// Visit walks the hierarchy depth-first, loading directories as it
// descends: directories first, then each level's files.
func (tree *Tree) Visit(cb TreeVisitorFunc) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(err).Name(), err)
			}
		}
	}()

	pathParts := make([]string, 0)

	err = tree.visit(pathParts, tree.rootNode, cb)
	log.PanicIf(err)

	return nil
}

func (tree *Tree) visit(pathParts []string, node *TreeNode, cb TreeVisitorFunc) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(err).Name(), err)
			}
		}
	}()

	err = cb(pathParts, node)
	log.PanicIf(err)

	for _, childFolderName := range node.childrenFolders {
		childNode := node.childrenMap[childFolderName]

		childPathParts := make([]string, len(pathParts)+1)
		copy(childPathParts, pathParts)
		childPathParts[len(childPathParts)-1] = childNode.name

		// Finish loading node.
		if childNode.loaded == false {
			err := tree.loadDirectory(childNode)
			log.PanicIf(err)
		}

		err := tree.visit(childPathParts, childNode, cb)
		log.PanicIf(err)
	}

	// Do the files all at once, at the bottom.
	for _, childFilename := range node.childrenFiles {
		childNode := node.childrenMap[childFilename]

		childPathParts := make([]string, len(pathParts)+1)
		copy(childPathParts, pathParts)
		childPathParts[len(childPathParts)-1] = childFilename

		err := cb(childPathParts, childNode)
		log.PanicIf(err)
	}

	return nil
}

// List returns the full path of every file and directory under the root,
// along with a map from path to node.
func (tree *Tree) List() (files []string, nodes map[string]*TreeNode, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			var ok bool
			if err, ok = errRaw.(error); ok == true {
				err = log.Wrap(err)
			} else {
				err = log.Errorf("Error not an error: [%s] [%v]", reflect.TypeOf(err).Name(), err)
			}
		}
	}()

	files = make([]string, 0)
	nodes = make(map[string]*TreeNode)

	cb := func(pathParts []string, node *TreeNode) (err error) {
		if len(pathParts) == 0 {
			return nil
		}

		nodePath := strings.Join(pathParts, `\`)

		files = append(files, nodePath)
		nodes[nodePath] = node

		return nil
	}

	err = tree.Visit(cb)
	log.PanicIf(err)

	return files, nodes, nil
}
