// Package rbac contiene la única tabla Role→Permission de la suite.
// La usan tanto el cliente (derivación de la sesión) como el servidor (RequirePermission);
// no debe duplicarse en ningún otro lugar.
package rbac

import (
	"maps"
	"slices"
)

// Roles válidos del claim role.
const (
	RoleSuperAdmin  = "superadmin"
	RoleAdmin       = "admin"
	RoleStaff       = "staff"
	RoleReports     = "reports"
	RoleMaintenance = "maintenance"
)

// Permisos gruesos (tags de capacidad) que controlan secciones de UI.
const (
	PermAppointment = "appointment"
	PermBilling     = "billing"
	PermInventory   = "inventory"
	PermMaintenance = "maintenance"
	PermReports     = "reports"
	PermUsers       = "users"
)

var rolePermissions = map[string][]string{
	RoleSuperAdmin:  {PermAppointment, PermBilling, PermInventory, PermMaintenance, PermReports, PermUsers},
	RoleAdmin:       {PermAppointment, PermBilling, PermInventory, PermMaintenance, PermReports},
	RoleStaff:       {PermAppointment, PermInventory},
	RoleReports:     {PermReports},
	RoleMaintenance: {PermMaintenance, PermInventory},
}

// PermissionSet conjunto de permisos. El valor nil es un conjunto vacío válido.
type PermissionSet map[string]struct{}

// Has informa si el conjunto contiene perm.
func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Slice devuelve los permisos ordenados alfabéticamente; nunca nil.
func (s PermissionSet) Slice() []string {
	if len(s) == 0 {
		return []string{}
	}
	return slices.Sorted(maps.Keys(s))
}

// PermissionsFor devuelve una copia del conjunto de permisos del rol.
// Roles desconocidos obtienen el conjunto vacío (default-deny).
func PermissionsFor(role string) PermissionSet {
	perms := rolePermissions[role]
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// KnownRole informa si el rol existe en la tabla.
func KnownRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// Roles devuelve los roles conocidos, ordenados.
func Roles() []string {
	return slices.Sorted(maps.Keys(rolePermissions))
}
