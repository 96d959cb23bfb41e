package knowledge

// NamespaceForOrg maps a tenant to its knowledge namespace. Namespaces are
// created lazily on first write, so the mapping is pure.
func NamespaceForOrg(orgID string) string {
	return "kb." + orgID
}
