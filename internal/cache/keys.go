package cache

// Key builders shared by everything that reads or invalidates the cache.
// Keys are namespaced tenant-first so a tenant's whole working set can be
// dropped with one prefix delete.

func RecordKey(tenant, objectID string) string {
	return tenant + ":record:" + objectID
}

func SchemaKey(tenant, typeName string) string {
	return tenant + ":schema:" + typeName
}

func SchemaPrefix(tenant string) string {
	return tenant + ":schema:"
}

func RelatedKey(tenant, objectID, name string) string {
	return tenant + ":related:" + objectID + ":" + name
}

func RelatedPrefix(tenant, objectID string) string {
	return tenant + ":related:" + objectID + ":"
}
