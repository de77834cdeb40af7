package core

const (
	DefaultStoreFileName = "store.db"

	BackendFile      = "file"
	BackendDirectory = "dir"
)
