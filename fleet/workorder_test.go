package fleet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loggier/fleet-billing/fleet"
)

func sampleWorkOrders() []fleet.WorkOrder {
	return []fleet.WorkOrder{
		{ID: "w1", OwnerID: "mgr-a", TechnicianID: "tech-1"},
		{ID: "w2", OwnerID: "mgr-a", TechnicianID: "tech-2"},
		{ID: "w3", OwnerID: "mgr-b", TechnicianID: "tech-1"},
	}
}

func TestFilterWorkOrders_ManagerSeesOwnOrders(t *testing.T) {
	visible := fleet.FilterWorkOrders(sampleWorkOrders(), fleet.Viewer{AccountID: "mgr-a", Role: fleet.RoleManager})

	assert.Len(t, visible, 2)
	assert.Equal(t, "w1", visible[0].ID)
	assert.Equal(t, "w2", visible[1].ID)
}

func TestFilterWorkOrders_TechnicianSeesAssignedOrders(t *testing.T) {
	visible := fleet.FilterWorkOrders(sampleWorkOrders(), fleet.Viewer{AccountID: "tech-1", Role: fleet.RoleTechnician})

	assert.Len(t, visible, 2)
	assert.Equal(t, "w1", visible[0].ID)
	assert.Equal(t, "w3", visible[1].ID)
}

func TestFilterWorkOrders_MasterSeesAll(t *testing.T) {
	visible := fleet.FilterWorkOrders(sampleWorkOrders(), fleet.Viewer{AccountID: "anyone", Role: fleet.RoleMaster})
	assert.Len(t, visible, 3)
}

func TestFilterWorkOrders_UnknownRoleSeesNothing(t *testing.T) {
	visible := fleet.FilterWorkOrders(sampleWorkOrders(), fleet.Viewer{AccountID: "mgr-a", Role: "intern"})
	assert.Empty(t, visible)
}

func TestFilterInstallationOrders_SameRuleApplies(t *testing.T) {
	orders := []fleet.InstallationOrder{
		{ID: "i1", OwnerID: "mgr-a", TechnicianID: "tech-1"},
		{ID: "i2", OwnerID: "mgr-b", TechnicianID: "tech-2"},
	}

	asTech := fleet.FilterInstallationOrders(orders, fleet.Viewer{AccountID: "tech-2", Role: fleet.RoleTechnician})
	assert.Len(t, asTech, 1)
	assert.Equal(t, "i2", asTech[0].ID)
}
