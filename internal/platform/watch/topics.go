package watch

import "fmt"

// Topic names mirror the store partitions: one per user record, tenant
// document, member sub-collection, and the tenant-scoped patient and record
// lists.

func TopicUser(accountID string) string {
	return "users/" + accountID
}

func TopicTenant(tenantID string) string {
	return "tenants/" + tenantID
}

func TopicTenantMembers(tenantID string) string {
	return fmt.Sprintf("tenants/%s/members", tenantID)
}

func TopicPatients(tenantID string) string {
	return "patients/" + tenantID
}

func TopicRecords(tenantID, patientID string) string {
	return fmt.Sprintf("records/%s/%s", tenantID, patientID)
}
