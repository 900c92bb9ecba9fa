/*
workorder.go - Field work orders and role-scoped visibility

PURPOSE:
  Work orders track field jobs (repairs, swaps); installation orders
  track new-unit installs assigned to a technician. Listings are
  filtered by viewer role: a manager sees orders they created, a
  technician sees orders assigned to them, a master account sees all.

SEE ALSO:
  - service.go: The action layer sharing the same result contract
*/
package fleet

import (
	"github.com/loggier/fleet-billing/billing"
)

// =============================================================================
// ROLES AND VIEWERS
// =============================================================================

type Role string

const (
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
	RoleMaster     Role = "master"
)

// Viewer is the identity a listing is scoped to.
type Viewer struct {
	AccountID string
	Role      Role
}

// =============================================================================
// ORDERS
// =============================================================================

type WorkOrderStatus string

const (
	OrderOpen      WorkOrderStatus = "open"
	OrderDone      WorkOrderStatus = "done"
	OrderCancelled WorkOrderStatus = "cancelled"
)

// WorkOrder is a standalone field job. It may reference a client but
// does not have to.
type WorkOrder struct {
	ID           string
	ClientID     billing.ClientID
	OwnerID      string // manager who created the order
	TechnicianID string // assignee, may be empty until dispatched
	Description  string
	Status       WorkOrderStatus
	CreatedOn    billing.Date
}

// InstallationOrder is a new-unit install tied to a client and unit.
type InstallationOrder struct {
	ID           string
	ClientID     billing.ClientID
	UnitID       billing.UnitID
	OwnerID      string
	TechnicianID string
	Plate        string
	Status       WorkOrderStatus
	ScheduledOn  billing.Date
}

// =============================================================================
// VISIBILITY
// =============================================================================

// visibleTo is the single rule both order kinds share.
func visibleTo(v Viewer, ownerID, technicianID string) bool {
	switch v.Role {
	case RoleMaster:
		return true
	case RoleManager:
		return ownerID == v.AccountID
	case RoleTechnician:
		return technicianID == v.AccountID
	default:
		return false
	}
}

// FilterWorkOrders returns the orders the viewer may see.
func FilterWorkOrders(orders []WorkOrder, v Viewer) []WorkOrder {
	out := make([]WorkOrder, 0, len(orders))
	for _, o := range orders {
		if visibleTo(v, o.OwnerID, o.TechnicianID) {
			out = append(out, o)
		}
	}
	return out
}

// FilterInstallationOrders returns the installs the viewer may see.
func FilterInstallationOrders(orders []InstallationOrder, v Viewer) []InstallationOrder {
	out := make([]InstallationOrder, 0, len(orders))
	for _, o := range orders {
		if visibleTo(v, o.OwnerID, o.TechnicianID) {
			out = append(out, o)
		}
	}
	return out
}
