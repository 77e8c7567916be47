package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/maachbazar/maachbazar-bot/internal/channel/whatsapp"
	"github.com/maachbazar/maachbazar-bot/internal/domain"
	"github.com/maachbazar/maachbazar-bot/internal/repo"
)

// fakeSessions reports a fixed session-window state for every user.
type fakeSessions struct{ active bool }

func (f *fakeSessions) IsActive(string) bool { return f.active }

// fakeNotifier records the last outbound notification.
type fakeNotifier struct {
	texts     []string
	templates []string
	err       error
}

func (f *fakeNotifier) SendText(ctx context.Context, to, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.texts = append(f.texts, body)
	return "wamid.n", nil
}

func (f *fakeNotifier) SendTemplate(ctx context.Context, to, name, languageCode string, components []whatsapp.TemplateComponent) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.templates = append(f.templates, name)
	return "wamid.n", nil
}

func newAdminRouter(t *testing.T, sessions SessionChecker, notifier Notifier) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "admin.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	h := NewAdmin(db, sessions, notifier)
	r := gin.New()
	r.GET("/admin/inventory", h.ListInventory)
	r.POST("/admin/inventory", h.AddInventory)
	r.PUT("/admin/inventory/price", h.UpdatePrice)
	r.PUT("/admin/inventory/:id", h.UpdateInventory)
	r.GET("/admin/orders", h.ListOrders)
	r.PUT("/admin/orders/:id/status", h.UpdateOrderStatus)
	return r, db
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestInventoryCRUD(t *testing.T) {
	r, db := newAdminRouter(t, &fakeSessions{}, &fakeNotifier{})

	// Add normalizes the name.
	w := doJSON(r, http.MethodPost, "/admin/inventory", `{"name":"rohu","price":250}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d body %s", w.Code, w.Body.String())
	}
	var created domain.InventoryItem
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Name != "Rohu" || !created.IsAvailable {
		t.Fatalf("created = %+v", created)
	}

	// Same fish again, regardless of case, conflicts.
	w = doJSON(r, http.MethodPost, "/admin/inventory", `{"name":"ROHU","price":260}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", w.Code)
	}

	// Missing price is rejected before touching storage.
	w = doJSON(r, http.MethodPost, "/admin/inventory", `{"name":"Katla"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad payload status = %d", w.Code)
	}

	// Update by id.
	w = doJSON(r, http.MethodPut, fmt.Sprintf("/admin/inventory/%d", created.ID), `{"price":275,"is_available":false}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("update status = %d body %s", w.Code, w.Body.String())
	}
	items, err := repo.ListInventory(context.Background(), db)
	if err != nil || len(items) != 1 {
		t.Fatalf("items = %v err = %v", items, err)
	}
	if items[0].Price != 275 || items[0].IsAvailable {
		t.Fatalf("item = %+v", items[0])
	}

	// Update by name, case-insensitive.
	w = doJSON(r, http.MethodPut, "/admin/inventory/price", `{"name":"rohu","price":300}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("price update status = %d", w.Code)
	}

	// Unknown targets are 404s.
	if w := doJSON(r, http.MethodPut, "/admin/inventory/9999", `{"price":1,"is_available":true}`); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
	if w := doJSON(r, http.MethodPut, "/admin/inventory/price", `{"name":"Pabda","price":1}`); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}

	// List includes unavailable entries.
	w = doJSON(r, http.MethodGet, "/admin/inventory", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Rohu") {
		t.Fatalf("list status = %d body %s", w.Code, w.Body.String())
	}
}

func seedOrder(t *testing.T, db *gorm.DB, phone string, total int) *domain.Order {
	t.Helper()
	o := &domain.Order{UserPhone: phone, TotalPrice: total, Status: domain.OrderStatusPending}
	if err := repo.CreateOrder(context.Background(), db, o); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return o
}

func TestListOrders_Pagination(t *testing.T) {
	r, db := newAdminRouter(t, &fakeSessions{}, &fakeNotifier{})
	for i := 0; i < 5; i++ {
		seedOrder(t, db, "880171", 100*(i+1))
	}

	w := doJSON(r, http.MethodGet, "/admin/orders?page=2&page_size=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var resp ListOrdersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Orders) != 2 {
		t.Fatalf("orders = %d; want 2", len(resp.Orders))
	}
	p := resp.Pagination
	if p.Page != 2 || p.PageSize != 2 || p.Total != 5 || p.TotalPages != 3 || !p.HasNext {
		t.Fatalf("pagination = %+v", p)
	}

	// Out-of-range params fall back to sane bounds.
	w = doJSON(r, http.MethodGet, "/admin/orders?page=-1&page_size=9000", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp = ListOrdersResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Pagination.Page != 1 || resp.Pagination.PageSize != 100 {
		t.Fatalf("pagination = %+v", resp.Pagination)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	t.Run("validates status", func(t *testing.T) {
		r, db := newAdminRouter(t, &fakeSessions{}, &fakeNotifier{})
		o := seedOrder(t, db, "880171", 375)

		w := doJSON(r, http.MethodPut, fmt.Sprintf("/admin/orders/%d/status", o.ID), `{"status":"shipped"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d; want 400", w.Code)
		}
		w = doJSON(r, http.MethodPut, "/admin/orders/9999/status", `{"status":"confirmed"}`)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d; want 404", w.Code)
		}
	})

	t.Run("in-session notify uses free text", func(t *testing.T) {
		notifier := &fakeNotifier{}
		r, db := newAdminRouter(t, &fakeSessions{active: true}, notifier)
		o := seedOrder(t, db, "880171", 375)

		w := doJSON(r, http.MethodPut, fmt.Sprintf("/admin/orders/%d/status", o.ID), `{"status":"Confirmed","notify":true}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d body %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"notified":true`) {
			t.Fatalf("body = %s", w.Body.String())
		}
		if len(notifier.texts) != 1 || len(notifier.templates) != 0 {
			t.Fatalf("notifier = %+v", notifier)
		}
		if !strings.Contains(notifier.texts[0], fmt.Sprintf("#%d", o.ID)) || !strings.Contains(notifier.texts[0], "confirmed") {
			t.Fatalf("text = %q", notifier.texts[0])
		}
	})

	t.Run("out-of-session notify uses template", func(t *testing.T) {
		notifier := &fakeNotifier{}
		r, db := newAdminRouter(t, &fakeSessions{active: false}, notifier)
		o := seedOrder(t, db, "880171", 375)

		w := doJSON(r, http.MethodPut, fmt.Sprintf("/admin/orders/%d/status", o.ID), `{"status":"rejected","notify":true}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if len(notifier.templates) != 1 || notifier.templates[0] != "order_update" {
			t.Fatalf("notifier = %+v", notifier)
		}
	})

	t.Run("notify failure keeps the status change", func(t *testing.T) {
		notifier := &fakeNotifier{err: errors.New("graph down")}
		r, db := newAdminRouter(t, &fakeSessions{active: true}, notifier)
		o := seedOrder(t, db, "880171", 375)

		w := doJSON(r, http.MethodPut, fmt.Sprintf("/admin/orders/%d/status", o.ID), `{"status":"confirmed","notify":true}`)
		if w.Code != http.StatusBadGateway {
			t.Fatalf("status = %d; want 502", w.Code)
		}
		var reloaded domain.Order
		if err := db.First(&reloaded, o.ID).Error; err != nil {
			t.Fatalf("reload: %v", err)
		}
		if reloaded.Status != domain.OrderStatusConfirmed {
			t.Fatalf("status = %q; status change must survive a failed notification", reloaded.Status)
		}
	})

	t.Run("no notify flag sends nothing", func(t *testing.T) {
		notifier := &fakeNotifier{}
		r, db := newAdminRouter(t, &fakeSessions{active: true}, notifier)
		o := seedOrder(t, db, "880171", 375)

		w := doJSON(r, http.MethodPut, fmt.Sprintf("/admin/orders/%d/status", o.ID), `{"status":"confirmed"}`)
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"notified":false`) {
			t.Fatalf("status = %d body %s", w.Code, w.Body.String())
		}
		if len(notifier.texts)+len(notifier.templates) != 0 {
			t.Fatalf("notifier = %+v", notifier)
		}
	})
}
