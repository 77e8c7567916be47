package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if (User{}).TableName() != "users" {
		t.Fatalf("User.TableName() = %q; want %q", (User{}).TableName(), "users")
	}
	if (Message{}).TableName() != "messages" {
		t.Fatalf("Message.TableName() = %q; want %q", (Message{}).TableName(), "messages")
	}
	if (Order{}).TableName() != "orders" {
		t.Fatalf("Order.TableName() = %q; want %q", (Order{}).TableName(), "orders")
	}
	if (OrderItem{}).TableName() != "order_items" {
		t.Fatalf("OrderItem.TableName() = %q; want %q", (OrderItem{}).TableName(), "order_items")
	}
	if (InventoryItem{}).TableName() != "inventory" {
		t.Fatalf("InventoryItem.TableName() = %q; want %q", (InventoryItem{}).TableName(), "inventory")
	}
}

func TestMigrations_Indexes_AndUniqueMessageOrder(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&User{}, &Message{}, &Order{}, &OrderItem{}, &InventoryItem{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	// Tables exist
	for _, tbl := range []any{&User{}, &Message{}, &Order{}, &OrderItem{}, &InventoryItem{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Indexes from tags exist
	if !m.HasIndex(&Message{}, "idx_user_msgs") {
		t.Fatalf("expected index idx_user_msgs on messages")
	}
	if !m.HasIndex(&Order{}, "ux_orders_message") {
		t.Fatalf("expected unique index ux_orders_message on orders")
	}

	// Seed a user, a message, and an order referencing that message
	now := time.Now().UTC()
	u := &User{Phone: "9110001111", LastActiveAt: now}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}
	msg := &Message{UserPhone: u.Phone, Role: RoleUser, Content: "Confirm"}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}

	o1 := &Order{UserPhone: u.Phone, TotalPrice: 375, Status: OrderStatusPending, MessageID: &msg.ID}
	if err := db.Create(o1).Error; err != nil {
		t.Fatalf("insert order: %v", err)
	}

	// A second order for the same message must be rejected by the unique index
	o2 := &Order{UserPhone: u.Phone, TotalPrice: 375, Status: OrderStatusPending, MessageID: &msg.ID}
	if err := db.Create(o2).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate message_id")
	}

	// Orders without a triggering message coexist: NULLs do not collide
	o3 := &Order{UserPhone: u.Phone, TotalPrice: 600, Status: OrderStatusPending}
	o4 := &Order{UserPhone: u.Phone, TotalPrice: 900, Status: OrderStatusPending}
	if err := db.Create(o3).Error; err != nil {
		t.Fatalf("insert o3: %v", err)
	}
	if err := db.Create(o4).Error; err != nil {
		t.Fatalf("insert o4: %v", err)
	}

	// Items preload through the association
	items := []OrderItem{{OrderID: o1.ID, FishName: "Rohu", QuantityKg: 1.5, PricePerKg: 250, Subtotal: 375}}
	if err := db.Create(&items).Error; err != nil {
		t.Fatalf("insert items: %v", err)
	}
	var got Order
	if err := db.Preload("Items").First(&got, "id = ?", o1.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].FishName != "Rohu" {
		t.Fatalf("expected preloaded item, got %+v", got.Items)
	}
}
