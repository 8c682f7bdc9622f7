package storage

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCompany_HasIdentity(t *testing.T) {
	if (&Company{}).HasIdentity() {
		t.Error("empty record should have no identity")
	}
	if !(&Company{Name: "Acme"}).HasIdentity() {
		t.Error("name alone is identity")
	}
	if !(&Company{Website: "https://acme.example"}).HasIdentity() {
		t.Error("website alone is identity")
	}
	if (&Company{Name: "   "}).HasIdentity() {
		t.Error("whitespace name is not identity")
	}
}

func TestCompany_HasContact(t *testing.T) {
	if (&Company{Name: "Acme"}).HasContact() {
		t.Error("no contact channels")
	}
	if !(&Company{Email: "a@b.c"}).HasContact() {
		t.Error("email is a contact channel")
	}
	if !(&Company{Phone: "+1"}).HasContact() {
		t.Error("phone is a contact channel")
	}
}

func TestCompany_MergeFrom(t *testing.T) {
	c := &Company{Name: "Acme", Email: "keep@acme.example"}
	c.MergeFrom(&Company{
		Name:        "Other Name",
		Email:       "drop@acme.example",
		Phone:       "+1-555-0100",
		Description: "Widgets",
	})

	if c.Name != "Acme" || c.Email != "keep@acme.example" {
		t.Errorf("existing fields must not be overwritten: %+v", c)
	}
	if c.Phone != "+1-555-0100" || c.Description != "Widgets" {
		t.Errorf("empty fields must be filled: %+v", c)
	}

	// nil other is a no-op
	c.MergeFrom(nil)
}

func TestCompany_JSONNullsForMissing(t *testing.T) {
	c := Company{ID: "1", Name: "Acme", Email: "a@acme.example", SourceURL: "https://src.example"}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)

	if !strings.Contains(s, `"phone":null`) {
		t.Errorf("missing phone should be null, got %s", s)
	}
	if !strings.Contains(s, `"website":null`) {
		t.Errorf("missing website should be null, got %s", s)
	}
	if !strings.Contains(s, `"email":"a@acme.example"`) {
		t.Errorf("present email should be a string, got %s", s)
	}

	var back Company
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Name != c.Name || back.Email != c.Email || back.Phone != "" {
		t.Errorf("round trip mismatch: %+v", back)
	}
}
