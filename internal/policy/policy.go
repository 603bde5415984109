// Package policy holds the per-operation permission table for billboard server requests.
//
// The table is data: each operation maps to a Rule that says whether a session
// is required and which predicate must hold for the caller and target. The
// dispatcher only authenticates; services consult Evaluate before touching state.
package policy

import "fmt"

// Operation names a request kind on the wire.
type Operation string

const (
	LoginUser               Operation = "loginUser"
	LogoutUser              Operation = "logoutUser"
	CheckSession            Operation = "checkSession"
	ListBillboards          Operation = "listBillboards"
	CreateBillboard         Operation = "createBillboard"
	UpdateBillboard         Operation = "updateBillboard"
	DeleteBillboard         Operation = "deleteBillboard"
	BillboardNameExists     Operation = "billboardNameExists"
	GetBillboardData        Operation = "getBillboardData"
	GetBillboardName        Operation = "getBillboardName"
	GetBillboardID          Operation = "getBillboardId"
	GetBillboardCreatorName Operation = "getBillboardCreatorName"
	AddSchedule             Operation = "addSchedule"
	DeleteSchedule          Operation = "deleteSchedule"
	GetAllSchedules         Operation = "getAllSchedules"
	GetBillboardSchedule    Operation = "getBillboardSchedule"
	GetCurrentBillboard     Operation = "getCurrentBillboard"
	GetUsernames            Operation = "getUsernames"
	GetUserData             Operation = "getUserData"
	GetUserID               Operation = "getUserId"
	AddUser                 Operation = "addUser"
	DeleteUser              Operation = "deleteUser"
	GetOwnPermissions       Operation = "getOwnPermissions"
	GetPermissions          Operation = "getPermissions"
	UpdateUserPermissions   Operation = "updateUserPermissions"
	UpdatePassword          Operation = "updatePassword"
)

// Permissions is the set of capability flags stored per user.
type Permissions struct {
	CreateBillboards   bool `cbor:"createBillboards"`
	EditBillboards     bool `cbor:"editBillboards"`
	ScheduleBillboards bool `cbor:"scheduleBillboards"`
	EditUsers          bool `cbor:"editUsers"`
}

// All returns a permission set with every flag enabled.
func All() Permissions {
	return Permissions{CreateBillboards: true, EditBillboards: true, ScheduleBillboards: true, EditUsers: true}
}

// Caller is the authenticated principal issuing a request.
type Caller struct {
	UserID      int64
	Permissions Permissions
}

// Target describes the resource a request acts on. Only the fields relevant
// to an operation need to be set.
type Target struct {
	// BillboardOwnerID is the owner of the billboard being modified.
	BillboardOwnerID int64
	// BillboardScheduled reports whether that billboard has at least one schedule.
	BillboardScheduled bool
	// UserID is the user whose data, permissions or password is addressed.
	UserID int64
}

// Decision is the outcome of evaluating a rule.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Predicate decides whether a caller may act on a target.
type Predicate func(Caller, Target) Decision

// Rule is one row of the permission table.
type Rule struct {
	Session bool
	Allow   Predicate
}

func public() Rule { return Rule{Allow: func(Caller, Target) Decision { return allow() }} }

func authenticated() Rule {
	return Rule{Session: true, Allow: func(Caller, Target) Decision { return allow() }}
}

func requires(name string, flag func(Permissions) bool) Rule {
	return Rule{Session: true, Allow: func(c Caller, _ Target) Decision {
		if flag(c.Permissions) {
			return allow()
		}
		return deny("%s permission required", name)
	}}
}

func createBillboards(p Permissions) bool   { return p.CreateBillboards }
func scheduleBillboards(p Permissions) bool { return p.ScheduleBillboards }
func editUsers(p Permissions) bool          { return p.EditUsers }

// billboardMutation lets owners touch their own unscheduled billboards with
// createBillboards only; anything else needs editBillboards.
func billboardMutation() Rule {
	return Rule{Session: true, Allow: func(c Caller, t Target) Decision {
		if t.BillboardOwnerID == c.UserID && !t.BillboardScheduled {
			if c.Permissions.CreateBillboards {
				return allow()
			}
			return deny("createBillboards permission required")
		}
		if c.Permissions.EditBillboards {
			return allow()
		}
		if t.BillboardOwnerID == c.UserID {
			return deny("editBillboards permission required for a scheduled billboard")
		}
		return deny("editBillboards permission required for another user's billboard")
	}}
}

func selfOrEditUsers() Rule {
	return Rule{Session: true, Allow: func(c Caller, t Target) Decision {
		if t.UserID == c.UserID || c.Permissions.EditUsers {
			return allow()
		}
		return deny("editUsers permission required")
	}}
}

func deleteOtherUser() Rule {
	return Rule{Session: true, Allow: func(c Caller, t Target) Decision {
		if t.UserID == c.UserID {
			return deny("users cannot delete themselves")
		}
		if !c.Permissions.EditUsers {
			return deny("editUsers permission required")
		}
		return allow()
	}}
}

var table = map[Operation]Rule{
	LoginUser:               public(),
	LogoutUser:              public(),
	ListBillboards:          public(),
	GetBillboardData:        public(),
	GetBillboardName:        public(),
	GetBillboardID:          public(),
	GetBillboardCreatorName: public(),
	GetCurrentBillboard:     public(),

	CheckSession:        authenticated(),
	BillboardNameExists: authenticated(),
	GetUserID:           authenticated(),
	GetOwnPermissions:   authenticated(),

	CreateBillboard: requires("createBillboards", createBillboards),
	UpdateBillboard: billboardMutation(),
	DeleteBillboard: billboardMutation(),

	AddSchedule:          requires("scheduleBillboards", scheduleBillboards),
	DeleteSchedule:       requires("scheduleBillboards", scheduleBillboards),
	GetAllSchedules:      requires("scheduleBillboards", scheduleBillboards),
	GetBillboardSchedule: requires("scheduleBillboards", scheduleBillboards),

	GetUsernames:          requires("editUsers", editUsers),
	AddUser:               requires("editUsers", editUsers),
	UpdateUserPermissions: requires("editUsers", editUsers),
	GetUserData:           selfOrEditUsers(),
	GetPermissions:        selfOrEditUsers(),
	UpdatePassword:        selfOrEditUsers(),
	DeleteUser:            deleteOtherUser(),
}

// Lookup returns the rule registered for op.
func Lookup(op Operation) (Rule, bool) {
	rule, ok := table[op]
	return rule, ok
}

// RequiresSession reports whether op needs an authenticated caller.
// Unknown operations are treated as requiring a session.
func RequiresSession(op Operation) bool {
	rule, ok := table[op]
	if !ok {
		return true
	}
	return rule.Session
}

// Operations lists every operation in the table.
func Operations() []Operation {
	ops := make([]Operation, 0, len(table))
	for op := range table {
		ops = append(ops, op)
	}
	return ops
}

// Evaluate applies the rule for op. Unknown operations are denied.
func Evaluate(op Operation, caller Caller, target Target) Decision {
	rule, ok := table[op]
	if !ok || rule.Allow == nil {
		return deny("unknown operation %q", op)
	}
	return rule.Allow(caller, target)
}
