package catalog

import (
	"testing"
)

func TestBuildTools_CoreOnly(t *testing.T) {
	wire := BuildTools(NewCategorySet())
	names := make(map[string]bool, len(wire))
	for _, tool := range wire {
		names[tool.Name] = true
	}

	for _, want := range []string{"search_products", "create_product", RequestToolsName} {
		if !names[want] {
			t.Errorf("core set missing %q", want)
		}
	}
	for _, excluded := range []string{"search_tradera", "create_draft_listing", "business_summary"} {
		if names[excluded] {
			t.Errorf("core set should not expose %q", excluded)
		}
	}
}

func TestBuildTools_MultipleCategories(t *testing.T) {
	wire := BuildTools(NewCategorySet(CategoryListing))
	names := make(map[string]bool, len(wire))
	for _, tool := range wire {
		names[tool.Name] = true
	}

	if !names["create_draft_listing"] || !names["search_products"] {
		t.Errorf("listing+core tools missing: %v", names)
	}
	if names["search_tradera"] {
		t.Error("research tool exposed without research category")
	}
}

func TestBuildTools_AllCategories(t *testing.T) {
	wire := BuildTools(NewCategorySet(Categories()...))
	// Every catalog entry plus request_tools.
	if len(wire) != len(All())+1 {
		t.Errorf("got %d tools, want %d", len(wire), len(All())+1)
	}
}

func TestBuildTools_CacheControlOnLastOnly(t *testing.T) {
	wire := BuildTools(NewCategorySet(CategoryListing, CategoryOrder))
	for i, tool := range wire[:len(wire)-1] {
		if tool.CacheControl {
			t.Errorf("tool %d (%s) should not carry the cache breakpoint", i, tool.Name)
		}
	}
	if !wire[len(wire)-1].CacheControl {
		t.Error("last tool missing the cache breakpoint")
	}
}

func TestBuildTools_RequestToolsAlwaysLast(t *testing.T) {
	for _, set := range []CategorySet{
		NewCategorySet(),
		NewCategorySet(CategoryAnalytics),
		NewCategorySet(Categories()...),
	} {
		wire := BuildTools(set)
		if wire[len(wire)-1].Name != RequestToolsName {
			t.Errorf("last tool = %q, want %q", wire[len(wire)-1].Name, RequestToolsName)
		}
	}
}

func TestBuildTools_OrderFollowsCatalog(t *testing.T) {
	wire := BuildTools(NewCategorySet(Categories()...))
	all := All()
	for i, schema := range all {
		if wire[i].Name != schema.Name {
			t.Fatalf("tool %d = %q, want %q (catalog order broken)", i, wire[i].Name, schema.Name)
		}
	}
}

func TestCatalog_Integrity(t *testing.T) {
	seen := make(map[string]bool)
	for _, schema := range All() {
		if seen[schema.Name] {
			t.Errorf("duplicate tool name %q", schema.Name)
		}
		seen[schema.Name] = true

		if !KnownCategory(schema.Category) {
			t.Errorf("tool %q has unknown category %q", schema.Name, schema.Category)
		}
		if schema.Input == nil {
			t.Errorf("tool %q has nil input schema", schema.Name)
		}
		if schema.Name == RequestToolsName {
			t.Error("request_tools must not appear in the catalog proper")
		}
	}
}

func TestCategoryOf(t *testing.T) {
	if cat, ok := CategoryOf("search_tradera"); !ok || cat != CategoryResearch {
		t.Errorf("CategoryOf(search_tradera) = %q, %v", cat, ok)
	}
	if _, ok := CategoryOf("no_such_tool"); ok {
		t.Error("CategoryOf accepted an unknown tool")
	}
}
