package storage

// MediaStore archives media referenced by inbound messages.
type MediaStore interface {
	// ArchiveImage fetches the platform-hosted picture and stores a copy,
	// returning the archived URL.
	ArchiveImage(msgID, picURL string) (string, error)
}
