package shop

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Permission is an (object, action) pair checked against the role policy.
type Permission struct {
	Object string
	Action string
}

var (
	PermViewOwnOrders = Permission{"orders", "read_own"}
	PermPlaceOrder    = Permission{"orders", "create"}
	PermManageOrders  = Permission{"orders", "write"}
	PermManageCars    = Permission{"cars", "write"}
	PermManageUsers   = Permission{"users", "write"}
	PermReadAudit     = Permission{"audit", "read"}
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// ADMIN inherits MANAGER, which inherits CLIENT.
var (
	rolePolicy = [][]string{
		{string(RoleClient), PermViewOwnOrders.Object, PermViewOwnOrders.Action},
		{string(RoleClient), PermPlaceOrder.Object, PermPlaceOrder.Action},
		{string(RoleManager), PermManageOrders.Object, PermManageOrders.Action},
		{string(RoleManager), PermManageCars.Object, PermManageCars.Action},
		{string(RoleAdmin), PermManageUsers.Object, PermManageUsers.Action},
		{string(RoleAdmin), PermReadAudit.Object, PermReadAudit.Action},
	}
	roleHierarchy = [][]string{
		{string(RoleAdmin), string(RoleManager)},
		{string(RoleManager), string(RoleClient)},
	}
)

// Authorizer decides which role may do what.
type Authorizer struct {
	e *casbin.SyncedEnforcer
}

func NewAuthorizer() (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	if _, err := e.AddPolicies(rolePolicy); err != nil {
		return nil, fmt.Errorf("rbac policy: %w", err)
	}
	if _, err := e.AddGroupingPolicies(roleHierarchy); err != nil {
		return nil, fmt.Errorf("rbac roles: %w", err)
	}
	return &Authorizer{e: e}, nil
}

// Allowed reports whether role holds perm. Unknown roles hold nothing.
func (a *Authorizer) Allowed(role Role, perm Permission) (bool, error) {
	return a.e.Enforce(string(role), perm.Object, perm.Action)
}
