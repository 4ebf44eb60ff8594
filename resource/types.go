package resource

// Handle is an opaque reference to an owned value in a table.
// The low 32 bits select a slot, the high 32 bits carry the slot generation.
// Handle 0 is reserved and always invalid.
type Handle uint64

func makeHandle(index int, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

// Slot returns the table slot the handle points at.
func (h Handle) Slot() uint32 {
	return uint32(h)
}

// Generation returns the slot generation the handle was issued for.
func (h Handle) Generation() uint32 {
	return uint32(h >> 32)
}

func (h Handle) index() int {
	return int(uint32(h)) - 1
}

// EventType identifies an ownership lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventMoved
	EventBorrowed
	EventBorrowReturned
	EventMutated
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventMoved:
		return "moved"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow-returned"
	case EventMutated:
		return "mutated"
	default:
		return "unknown"
	}
}

// Event represents an ownership lifecycle event.
// For EventMoved, Previous holds the handle that stopped being valid.
type Event struct {
	Value    any
	Handle   Handle
	Previous Handle
	TypeID   uint32
	Type     EventType
}

// Observer receives notifications about ownership lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend provides the underlying storage mechanism for owned values.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(typeID uint32, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Drop removes a value and returns (value, true) if the destructor should run.
	// Returns (nil, false) if the handle is stale or exclusively borrowed.
	Drop(handle Handle) (any, bool)

	// Close releases all values held by the backend.
	Close() error
}

// BorrowBackend extends Backend with the version and exclusive borrow
// bookkeeping used to invalidate shared views.
type BorrowBackend interface {
	Backend

	// Version returns the mutation counter of a live handle.
	Version(handle Handle) (uint32, bool)

	// Touch records a mutation and returns the new version.
	Touch(handle Handle) (uint32, bool)

	// BorrowMut marks the handle exclusively borrowed and bumps its version.
	BorrowMut(handle Handle) bool

	// ReturnMut clears the exclusive borrow.
	ReturnMut(handle Handle) bool

	// MutBorrowed reports whether the handle is exclusively borrowed.
	MutBorrowed(handle Handle) bool
}

// Table manages owned values with type information and observer support.
type Table interface {
	// Insert adds a value and returns its handle.
	Insert(typeID uint32, value any) Handle

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// GetTyped retrieves a value only if it matches the expected type.
	GetTyped(handle Handle, typeID uint32) (any, bool)

	// Remove drops a value and returns (value, true) if found.
	Remove(handle Handle) (any, bool)

	// Transfer moves a value to a fresh handle; the old handle stops resolving.
	Transfer(handle Handle) (Handle, bool)

	// Subscribe adds an observer for lifecycle events.
	Subscribe(Observer)

	// Unsubscribe removes an observer.
	Unsubscribe(Observer)

	// Len returns the number of live values.
	Len() int

	// Clear drops all values.
	Clear()

	// Close releases all values and stops accepting operations.
	Close() error
}

// Dropper is optionally implemented by values that need cleanup when released.
type Dropper interface {
	Drop()
}
