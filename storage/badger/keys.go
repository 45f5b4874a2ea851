package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/memctx/storage"
)

// collectionPrefix returns the key prefix shared by all documents of a collection.
// Format: collection:
func collectionPrefix(collection storage.Collection) []byte {
	return []byte(string(collection) + ":")
}

// makeDocumentKey generates the key of the document at a write position.
// Format: collection:position
func makeDocumentKey(collection storage.Collection, position uint64) []byte {
	prefix := collectionPrefix(collection)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort follows write order
	binary.BigEndian.PutUint64(buf[offset:], position)
	return buf
}

// encodeDocument packs a document key and body into one value.
// Format: uvarint(len(key)) key body
func encodeDocument(doc storage.Document) []byte {
	buf := make([]byte, binary.MaxVarintLen64+len(doc.Key)+len(doc.Body))
	offset := binary.PutUvarint(buf, uint64(len(doc.Key)))
	offset += copy(buf[offset:], doc.Key)
	offset += copy(buf[offset:], doc.Body)
	return buf[:offset]
}

// decodeDocument reverses encodeDocument. The returned document owns its bytes.
func decodeDocument(val []byte) (storage.Document, error) {
	keyLen, n := binary.Uvarint(val)
	if n <= 0 || uint64(len(val)-n) < keyLen {
		return storage.Document{}, fmt.Errorf("%w: bad key length", storage.ErrCorruptDocument)
	}
	key := string(val[n : n+int(keyLen)])
	body := make([]byte, len(val)-n-int(keyLen))
	copy(body, val[n+int(keyLen):])
	return storage.Document{Key: key, Body: body}, nil
}
