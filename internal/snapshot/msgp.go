package snapshot

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// Compile-time checks for the msgp interfaces.
var (
	_ msgp.Marshaler   = (*Snapshot)(nil)
	_ msgp.Unmarshaler = (*Snapshot)(nil)
	_ msgp.Sizer       = (*Snapshot)(nil)
	_ msgp.Marshaler   = (*Item)(nil)
	_ msgp.Unmarshaler = (*Item)(nil)
	_ msgp.Marshaler   = (*Entry)(nil)
	_ msgp.Unmarshaler = (*Entry)(nil)
)

// MarshalMsg implements msgp.Marshaler.
func (s *Snapshot) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 4)
	b = msgp.AppendString(b, "v")
	b = msgp.AppendInt(b, FormatVersion)
	b = msgp.AppendString(b, "root")
	b = msgp.AppendString(b, s.Root)
	b = msgp.AppendString(b, "saved_at")
	b = msgp.AppendTime(b, s.SavedAt)
	b = msgp.AppendString(b, "items")
	b = msgp.AppendMapHeader(b, uint32(len(s.Items)))
	for _, id := range s.IDs() {
		item := s.Items[id]
		b = msgp.AppendString(b, id)
		var err error
		if b, err = item.MarshalMsg(b); err != nil {
			return b, fmt.Errorf("item %q: %w", id, err)
		}
	}
	return b, nil
}

// UnmarshalMsg implements msgp.Unmarshaler. Unknown fields are skipped.
func (s *Snapshot) UnmarshalMsg(b []byte) ([]byte, error) {
	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, err
	}
	*s = Snapshot{}
	for range n {
		var field []byte
		if field, b, err = msgp.ReadMapKeyZC(b); err != nil {
			return b, err
		}
		switch string(field) {
		case "v":
			s.version, b, err = msgp.ReadIntBytes(b)
		case "root":
			s.Root, b, err = msgp.ReadStringBytes(b)
		case "saved_at":
			s.SavedAt, b, err = msgp.ReadTimeBytes(b)
		case "items":
			b, err = s.unmarshalItems(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return b, fmt.Errorf("field %q: %w", field, err)
		}
	}
	return b, nil
}

func (s *Snapshot) unmarshalItems(b []byte) ([]byte, error) {
	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if err := fitsIn(n, b); err != nil {
		return b, err
	}
	s.Items = make(map[string]Item, n)
	for range n {
		var id string
		if id, b, err = msgp.ReadStringBytes(b); err != nil {
			return b, err
		}
		var item Item
		if b, err = item.UnmarshalMsg(b); err != nil {
			return b, fmt.Errorf("item %q: %w", id, err)
		}
		s.Items[id] = item
	}
	return b, nil
}

// Msgsize returns an upper bound on the encoded size of s.
func (s *Snapshot) Msgsize() int {
	size := msgp.MapHeaderSize +
		msgp.StringPrefixSize + 1 + msgp.IntSize +
		msgp.StringPrefixSize + 4 + msgp.StringPrefixSize + len(s.Root) +
		msgp.StringPrefixSize + 8 + msgp.TimeSize +
		msgp.StringPrefixSize + 5 + msgp.MapHeaderSize
	for id, item := range s.Items {
		size += msgp.StringPrefixSize + len(id) + item.Msgsize()
	}
	return size
}

// MarshalMsg implements msgp.Marshaler.
func (it *Item) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 8)
	b = msgp.AppendString(b, "id")
	b = msgp.AppendString(b, it.ID)
	b = msgp.AppendString(b, "path")
	b = msgp.AppendString(b, it.Path)
	b = msgp.AppendString(b, "title")
	b = msgp.AppendString(b, it.Title)
	b = msgp.AppendString(b, "sig")
	b = msgp.AppendUint64(b, it.Signature)
	b = msgp.AppendString(b, "contents_sig")
	b = msgp.AppendString(b, it.ContentsSignature)
	b = msgp.AppendString(b, "mtime")
	b = msgp.AppendInt64(b, it.Mtime)
	b = msgp.AppendString(b, "parent")
	b = msgp.AppendString(b, it.ParentID)
	b = msgp.AppendString(b, "entries")
	b = msgp.AppendArrayHeader(b, uint32(len(it.Entries)))
	for i := range it.Entries {
		var err error
		if b, err = it.Entries[i].MarshalMsg(b); err != nil {
			return b, err
		}
	}
	return b, nil
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (it *Item) UnmarshalMsg(b []byte) ([]byte, error) {
	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, err
	}
	*it = Item{}
	for range n {
		var field []byte
		if field, b, err = msgp.ReadMapKeyZC(b); err != nil {
			return b, err
		}
		switch string(field) {
		case "id":
			it.ID, b, err = msgp.ReadStringBytes(b)
		case "path":
			it.Path, b, err = msgp.ReadStringBytes(b)
		case "title":
			it.Title, b, err = msgp.ReadStringBytes(b)
		case "sig":
			it.Signature, b, err = msgp.ReadUint64Bytes(b)
		case "contents_sig":
			it.ContentsSignature, b, err = msgp.ReadStringBytes(b)
		case "mtime":
			it.Mtime, b, err = msgp.ReadInt64Bytes(b)
		case "parent":
			it.ParentID, b, err = msgp.ReadStringBytes(b)
		case "entries":
			b, err = it.unmarshalEntries(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return b, fmt.Errorf("field %q: %w", field, err)
		}
	}
	return b, nil
}

func (it *Item) unmarshalEntries(b []byte) ([]byte, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if n == 0 {
		return b, nil
	}
	if err := fitsIn(n, b); err != nil {
		return b, err
	}
	it.Entries = make([]Entry, n)
	for i := range it.Entries {
		if b, err = it.Entries[i].UnmarshalMsg(b); err != nil {
			return b, err
		}
	}
	return b, nil
}

// Msgsize returns an upper bound on the encoded size of it.
func (it *Item) Msgsize() int {
	size := msgp.MapHeaderSize +
		msgp.StringPrefixSize + 2 + msgp.StringPrefixSize + len(it.ID) +
		msgp.StringPrefixSize + 4 + msgp.StringPrefixSize + len(it.Path) +
		msgp.StringPrefixSize + 5 + msgp.StringPrefixSize + len(it.Title) +
		msgp.StringPrefixSize + 3 + msgp.Uint64Size +
		msgp.StringPrefixSize + 12 + msgp.StringPrefixSize + len(it.ContentsSignature) +
		msgp.StringPrefixSize + 5 + msgp.Int64Size +
		msgp.StringPrefixSize + 6 + msgp.StringPrefixSize + len(it.ParentID) +
		msgp.StringPrefixSize + 7 + msgp.ArrayHeaderSize
	for i := range it.Entries {
		size += it.Entries[i].Msgsize()
	}
	return size
}

// MarshalMsg implements msgp.Marshaler.
func (e *Entry) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 6)
	b = msgp.AppendString(b, "id")
	b = msgp.AppendString(b, e.ID)
	b = msgp.AppendString(b, "path")
	b = msgp.AppendString(b, e.Path)
	b = msgp.AppendString(b, "title")
	b = msgp.AppendString(b, e.Title)
	b = msgp.AppendString(b, "sig")
	b = msgp.AppendUint64(b, e.Signature)
	b = msgp.AppendString(b, "mtime")
	b = msgp.AppendInt64(b, e.Mtime)
	b = msgp.AppendString(b, "pages")
	b = msgp.AppendInt(b, e.Pages)
	return b, nil
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (e *Entry) UnmarshalMsg(b []byte) ([]byte, error) {
	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, err
	}
	*e = Entry{}
	for range n {
		var field []byte
		if field, b, err = msgp.ReadMapKeyZC(b); err != nil {
			return b, err
		}
		switch string(field) {
		case "id":
			e.ID, b, err = msgp.ReadStringBytes(b)
		case "path":
			e.Path, b, err = msgp.ReadStringBytes(b)
		case "title":
			e.Title, b, err = msgp.ReadStringBytes(b)
		case "sig":
			e.Signature, b, err = msgp.ReadUint64Bytes(b)
		case "mtime":
			e.Mtime, b, err = msgp.ReadInt64Bytes(b)
		case "pages":
			e.Pages, b, err = msgp.ReadIntBytes(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return b, fmt.Errorf("entry field %q: %w", field, err)
		}
	}
	return b, nil
}

// Msgsize returns an upper bound on the encoded size of e.
func (e *Entry) Msgsize() int {
	return msgp.MapHeaderSize +
		msgp.StringPrefixSize + 2 + msgp.StringPrefixSize + len(e.ID) +
		msgp.StringPrefixSize + 4 + msgp.StringPrefixSize + len(e.Path) +
		msgp.StringPrefixSize + 5 + msgp.StringPrefixSize + len(e.Title) +
		msgp.StringPrefixSize + 3 + msgp.Uint64Size +
		msgp.StringPrefixSize + 5 + msgp.Int64Size +
		msgp.StringPrefixSize + 5 + msgp.IntSize
}

// fitsIn rejects a collection header declaring more elements than the
// remaining bytes could encode. Every element takes at least one byte.
func fitsIn(n uint32, b []byte) error {
	if uint64(n) > uint64(len(b)) {
		return msgp.ErrShortBytes
	}
	return nil
}
