package sessions

import (
	"testing"

	"github.com/CartMateCo/grocery-service/internal/core/grocery"
	"github.com/google/uuid"
)

func TestStoreLifecycle(t *testing.T) {
	store := NewStore()

	created := store.Create()
	if created.ID == uuid.Nil {
		t.Fatal("session has nil ID")
	}
	if len(created.Items) != 0 {
		t.Errorf("fresh session has items: %v", created.Items)
	}

	updated, err := store.Replace(created.ID, []grocery.GroceryItem{{Name: "milk", Quantity: 2}})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if len(updated.Items) != 1 || updated.Items[0].Name != "milk" {
		t.Errorf("items = %v", updated.Items)
	}
	if updated.UpdatedAt.Before(created.UpdatedAt) {
		t.Error("UpdatedAt went backwards")
	}

	got, err := store.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Items) != 1 {
		t.Errorf("items = %v", got.Items)
	}

	if err := store.Delete(created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(created.ID); err != ErrNotFound {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(created.ID); err != ErrNotFound {
		t.Errorf("double Delete = %v, want ErrNotFound", err)
	}
}

func TestStoreSnapshotsAreIsolated(t *testing.T) {
	store := NewStore()
	created := store.Create()

	if _, err := store.Replace(created.ID, []grocery.GroceryItem{{Name: "eggs", Quantity: 6}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	first, _ := store.Get(created.ID)
	first.Items[0].Quantity = 99

	second, _ := store.Get(created.ID)
	if second.Items[0].Quantity != 6 {
		t.Errorf("mutating a snapshot leaked into the store: %v", second.Items)
	}
}

func TestStoreUnknownID(t *testing.T) {
	store := NewStore()
	if _, err := store.Get(uuid.New()); err != ErrNotFound {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
	if _, err := store.Replace(uuid.New(), nil); err != ErrNotFound {
		t.Errorf("Replace = %v, want ErrNotFound", err)
	}
}
