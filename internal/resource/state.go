// Package resource implements the bounded pool of open subarray handles
// and the memory budget the dataset façade spends against it: admission,
// LRU eviction, open-state tracking, and disk-backed result buffers for
// reads that would not fit in the memory budget.
package resource

// OpenState is one node of the open-file record's lifecycle.
type OpenState int

const (
	DoesNotExist OpenState = iota
	OpenNewInMemory
	OpenExistsInMemory
	KnownExistsOnStorage
	OpenNewOnDisk
	OpenExistsOnDisk
	KnownExistsOnDisk
)

func (s OpenState) String() string {
	switch s {
	case DoesNotExist:
		return "does_not_exist"
	case OpenNewInMemory:
		return "open_new_in_memory"
	case OpenExistsInMemory:
		return "open_exists_in_memory"
	case KnownExistsOnStorage:
		return "known_exists_on_storage"
	case OpenNewOnDisk:
		return "open_new_on_disk"
	case OpenExistsOnDisk:
		return "open_exists_on_disk"
	case KnownExistsOnDisk:
		return "known_exists_on_disk"
	default:
		return "unknown"
	}
}

// open returns the state a freshly opened backend handle starts in,
// depending on whether the backend is remote.
func open(remote bool) OpenState {
	if remote {
		return OpenNewInMemory
	}
	return OpenNewOnDisk
}

// decoded advances a New state to its Exists counterpart once the
// container body has been parsed.
func decoded(s OpenState) OpenState {
	switch s {
	case OpenNewInMemory:
		return OpenExistsInMemory
	case OpenNewOnDisk:
		return OpenExistsOnDisk
	default:
		return s
	}
}

// evicted returns the Known state a record moves to once its backing
// handle is closed (and, if dirty, flushed).
func evicted(s OpenState) OpenState {
	switch s {
	case OpenExistsInMemory:
		return KnownExistsOnStorage
	case OpenExistsOnDisk:
		return KnownExistsOnDisk
	default:
		return s
	}
}

// inMemory reports whether a record in state s counts against the
// memory budget rather than the file-handle budget.
func inMemory(s OpenState) bool {
	return s == OpenExistsInMemory || s == OpenNewInMemory
}

// onDisk reports whether a record in state s counts against the
// open-file-handle budget.
func onDisk(s OpenState) bool {
	return s == OpenExistsOnDisk || s == OpenNewOnDisk
}
