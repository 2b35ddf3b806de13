package catalog

// Default returns the built-in catalog shipped with the editor.
func Default() *Catalog {
	return MustNew(
		Service{Name: "User", Functions: []string{"create", "delete"}},
		Service{Name: "License", Functions: []string{"create", "delete"}},
		Service{Name: "Membership", Functions: []string{"create", "delete"}},
		Service{Name: "Legal", Functions: []string{"update", "delete"}},
	)
}
