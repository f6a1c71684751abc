package vectorstore

import "github.com/google/uuid"

// entryNamespace salts point IDs so they cannot collide with UUIDs from
// other collections sharing the same Qdrant instance.
var entryNamespace = uuid.MustParse("8f9e2c47-6c1a-4b53-9b2e-0d4a7f31c5a9")

// PointID derives the deterministic UUID used as the Qdrant point ID for
// an index entry. Qdrant only accepts UUIDs or unsigned integers as point
// IDs, so the human-readable entry ID ("{sequence}_{message_id}") is
// hashed into a stable UUID and kept in the payload instead.
func PointID(entryID string) string {
	return uuid.NewSHA1(entryNamespace, []byte(entryID)).String()
}
