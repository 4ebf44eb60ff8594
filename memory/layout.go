package memory

// Field sizes of the C structures the scenarios lay out in memory.
const (
	FixedStringSize = 16
	Int32Size       = 4
)

// User layout: char username[16]; char password[16]; int is_admin.
const (
	UsernameOffset = 0
	UsernameSize   = FixedStringSize
	PasswordOffset = UsernameOffset + UsernameSize
	PasswordSize   = FixedStringSize
	IsAdminOffset  = PasswordOffset + PasswordSize
	IsAdminSize    = Int32Size
	UserSize       = UsernameSize + PasswordSize + IsAdminSize
)

// Session layout: int session_id; User *user.
const (
	SessionIDOffset   = 0
	SessionIDSize     = Int32Size
	UserPointerOffset = SessionIDOffset + SessionIDSize
	UserPointerSize   = Int32Size
	SessionSize       = SessionIDSize + UserPointerSize
)

// UserView reads a User laid out at Base.
type UserView struct {
	Mem  *Memory
	Base uint32
}

func (u UserView) Username() (string, error) {
	return u.Mem.ReadString(u.Base+UsernameOffset, UsernameSize)
}

func (u UserView) Password() (string, error) {
	return u.Mem.ReadString(u.Base+PasswordOffset, PasswordSize)
}

func (u UserView) IsAdmin() (int32, error) {
	return u.Mem.ReadInt32(u.Base + IsAdminOffset)
}

// AddressRange returns the heap range the user occupies.
func (u UserView) AddressRange() string {
	return AddressRange(u.Base, 0, UserSize, false)
}

// FieldRanges returns the address range of each field, in layout order.
func (u UserView) FieldRanges() map[string]string {
	return map[string]string{
		"username": AddressRange(u.Base, UsernameOffset, UsernameSize, false),
		"password": AddressRange(u.Base, PasswordOffset, PasswordSize, false),
		"is_admin": AddressRange(u.Base, IsAdminOffset, IsAdminSize, false),
	}
}

// SessionView reads a Session laid out at Base.
type SessionView struct {
	Mem  *Memory
	Base uint32
}

func (s SessionView) SessionID() (int32, error) {
	return s.Mem.ReadInt32(s.Base + SessionIDOffset)
}

func (s SessionView) UserPointer() (int32, error) {
	return s.Mem.ReadInt32(s.Base + UserPointerOffset)
}

// Active reports whether the session id is non-zero.
func (s SessionView) Active() bool {
	id, err := s.SessionID()
	return err == nil && id != 0
}

// AddressRange returns the heap range the session occupies.
func (s SessionView) AddressRange() string {
	return AddressRange(s.Base, 0, SessionSize, false)
}
