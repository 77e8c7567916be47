// Package domain defines the persistence models for users, messages, orders,
// and inventory. These types are mapped with GORM and form the core data layer
// of the WhatsApp commerce bot.
package domain

import (
	"time"
)

// Conversation states stored on the User row. A user is in exactly one state
// at a time; the empty/NULL state means normal chat handling.
const (
	// StateAwaitingAddress marks that the next text message from the user is
	// interpreted as a delivery address rather than a chat turn.
	StateAwaitingAddress = "AWAITING_ADDRESS"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Order statuses. Orders start pending; the admin dashboard moves them on.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusRejected  = "rejected"
)

// User represents a WhatsApp customer, keyed by phone number. Created on the
// first inbound message from an unseen number; never deleted.
//
// Fields:
//   - Phone: stable channel identifier, primary key.
//   - Language: preferred reply language, nil until chosen from the menu.
//   - Address: delivery address, nil until captured.
//   - ConversationState: in-progress sub-flow marker (see StateAwaitingAddress),
//     nil in the normal state.
//   - AddressUpdateCount: address edits since the last committed order.
//   - OptIn: whether the user receives the morning stock broadcast.
//   - LastActiveAt: last inbound activity, updated on every webhook event.
type User struct {
	Phone              string    `json:"phone"                gorm:"type:varchar(32);primaryKey"`
	Language           *string   `json:"language"             gorm:"type:varchar(32)"`
	Address            *string   `json:"address"              gorm:"type:text"`
	ConversationState  *string   `json:"conversation_state"   gorm:"type:varchar(32)"`
	AddressUpdateCount int       `json:"address_update_count" gorm:"not null;default:0"`
	OptIn              bool      `json:"opt_in"               gorm:"not null;default:true"`
	LastActiveAt       time.Time `json:"last_active_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Message is one utterance in a user's conversation, authored either by the
// "user" or the "assistant". The log is append-only.
//
// Fields:
//   - ID: auto-increment primary key; this is the internal message identifier
//     orders reference for idempotency.
//   - ChannelMessageID: external WhatsApp message id (wamid), set when known.
//     Used to resolve a button reply's context back to the internal id.
//   - OrderPlaced: best-effort marker that an order was committed off this
//     message.
type Message struct {
	ID               uint      `json:"id"                 gorm:"primaryKey;autoIncrement"`
	UserPhone        string    `json:"user_phone"         gorm:"type:varchar(32);not null;index:idx_user_msgs,priority:1"`
	Role             string    `json:"role"               gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content          string    `json:"content"            gorm:"type:text;not null"`
	ChannelMessageID *string   `json:"channel_message_id,omitempty" gorm:"type:varchar(128);index"`
	OrderPlaced      bool      `json:"order_placed"       gorm:"not null;default:false"`
	CreatedAt        time.Time `json:"created_at"         gorm:"index:idx_user_msgs,priority:2"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Order is a purchase committed from a conversation. At most one order may
// ever exist for a given triggering message: MessageID carries a unique index
// so a duplicate delivery loses at the storage layer, not just at the
// pre-check.
type Order struct {
	ID              uint        `json:"id"               gorm:"primaryKey;autoIncrement"`
	UserPhone       string      `json:"user_phone"       gorm:"type:varchar(32);not null;index"`
	TotalPrice      int         `json:"total_price"      gorm:"not null"`
	Status          string      `json:"status"           gorm:"type:varchar(16);not null;default:'pending'"`
	DeliveryAddress *string     `json:"delivery_address" gorm:"type:text"`
	MessageID       *uint       `json:"message_id,omitempty" gorm:"uniqueIndex:ux_orders_message"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Items           []OrderItem `json:"order_items"      gorm:"foreignKey:OrderID"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// OrderItem is a single line of an order. Subtotal is fixed at order time
// (round half up of QuantityKg * PricePerKg) so later price changes do not
// rewrite history.
type OrderItem struct {
	ID         uint    `json:"id"           gorm:"primaryKey;autoIncrement"`
	OrderID    uint    `json:"order_id"     gorm:"not null;index"`
	FishName   string  `json:"fish_name"    gorm:"type:varchar(64);not null"`
	QuantityKg float64 `json:"quantity_kg"  gorm:"not null"`
	PricePerKg int     `json:"price_per_kg" gorm:"not null"`
	Subtotal   int     `json:"subtotal"     gorm:"not null"`
}

// TableName returns the database table name for OrderItem.
func (OrderItem) TableName() string { return "order_items" }

// InventoryItem is one fish on the daily price list.
type InventoryItem struct {
	ID          uint      `json:"id"           gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name"         gorm:"type:varchar(64);not null;uniqueIndex"`
	Price       int       `json:"price"        gorm:"not null"`
	IsAvailable bool      `json:"is_available" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for InventoryItem.
func (InventoryItem) TableName() string { return "inventory" }
