package entity

// Role is the global permission level. Levels are cumulative: a manager can
// do everything a cashier can. Organizer is a per-event capability, not a
// role (see EventOrganizer).
type Role string

const (
	RoleRegular   Role = "regular"
	RoleCashier   Role = "cashier"
	RoleManager   Role = "manager"
	RoleSuperuser Role = "superuser"
)

var roleLevels = map[Role]int{
	RoleRegular:   0,
	RoleCashier:   1,
	RoleManager:   2,
	RoleSuperuser: 3,
}

func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

func (r Role) Level() int {
	return roleLevels[r]
}

// Has reports whether r grants at least the permissions of min.
func (r Role) Has(min Role) bool {
	if !r.Valid() {
		return false
	}
	return roleLevels[r] >= roleLevels[min]
}
