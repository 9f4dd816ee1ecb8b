package fat32

import "github.com/imgfat/imgfat/fserrors"

// Open resolves a sequence of path components (already split by the
// caller) against this volume's root, opening each intermediate directory
// along the way. It's the multi-component analogue of Lookup.
func (v *Volume) Open(comps []string) (*Fnode, error) {
	cur := v.Root
	for _, name := range comps {
		if name == "" {
			continue
		}
		if !cur.IsDir {
			return nil, fserrors.NotADirectory.WithMessage(cur.Name)
		}
		e, ok, err := v.Lookup(cur.FirstClus, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fserrors.NotFound.WithMessage(name)
		}
		cur = &Fnode{
			Name:      e.Name,
			FirstClus: e.FirstClus,
			DirOffset: e.DirOffset,
			Size:      e.Size,
			IsDir:     e.IsDir(),
			Parent:    cur,
			vol:       v,
		}
	}
	return cur, nil
}

// OpenOrMkdirAll behaves like Open but creates any missing directory
// components along the way, mirroring imagetool.c's mkdir helper which
// tries opendir first to avoid duplicate-create (§C.3).
func (v *Volume) OpenOrMkdirAll(comps []string) (*Fnode, error) {
	cur := v.Root
	for _, name := range comps {
		if name == "" {
			continue
		}
		e, ok, err := v.Lookup(cur.FirstClus, name)
		if err != nil {
			return nil, err
		}
		if ok {
			cur = &Fnode{
				Name:      e.Name,
				FirstClus: e.FirstClus,
				DirOffset: e.DirOffset,
				Size:      e.Size,
				IsDir:     e.IsDir(),
				Parent:    cur,
				vol:       v,
			}
			continue
		}
		child, err := cur.Mkdir(name)
		if err != nil {
			return nil, err
		}
		cur = child
	}
	return cur, nil
}
