package badger

// docRecordPrefix namespaces document records. Keys are prefix:docID.
const docRecordPrefix = "docrec:"

// makeDocRecordKey generates a key for a document record by DocID.
func makeDocRecordKey(docID string) []byte {
	return []byte(docRecordPrefix + docID)
}
