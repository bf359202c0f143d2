package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/subletx/subletx/internal/domain/listing"
	"github.com/subletx/subletx/internal/domain/order"
	"github.com/subletx/subletx/internal/domain/user"
	"github.com/subletx/subletx/internal/http/handlers"
	"github.com/subletx/subletx/internal/http/middlewares"
	"github.com/subletx/subletx/internal/storage"
)

type fakeOrdersRepo struct {
	createFn        func(ctx context.Context, buyerID string, req order.CreateOrderRequest) (order.Order, error)
	getFn           func(ctx context.Context, id string) (order.Order, error)
	listForUserFn   func(ctx context.Context, userID string) ([]order.Order, error)
	setScreenshotFn func(ctx context.Context, id, buyerID, url string) (order.Order, error)
}

func (f *fakeOrdersRepo) Create(ctx context.Context, buyerID string, req order.CreateOrderRequest) (order.Order, error) {
	if f.createFn != nil {
		return f.createFn(ctx, buyerID, req)
	}
	return order.Order{}, nil
}

func (f *fakeOrdersRepo) GetByID(ctx context.Context, id string) (order.Order, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return order.Order{}, order.ErrNotFound
}

func (f *fakeOrdersRepo) ListForUser(ctx context.Context, userID string) ([]order.Order, error) {
	if f.listForUserFn != nil {
		return f.listForUserFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeOrdersRepo) SetScreenshotURL(ctx context.Context, id, buyerID, url string) (order.Order, error) {
	if f.setScreenshotFn != nil {
		return f.setScreenshotFn(ctx, id, buyerID, url)
	}
	return order.Order{}, nil
}

func newOrdersRouter(t *testing.T, repo *fakeOrdersRepo) *gin.Engine {
	t.Helper()

	screenshots, err := storage.NewDiskStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}

	h := handlers.NewOrdersHandler(repo, screenshots)
	mw := middlewares.NewAuthMiddleware(testJWT())

	r := gin.New()
	authed := r.Group("/", mw.RequireAuth())
	authed.POST("/orders", h.Create)
	authed.GET("/orders", h.List)
	authed.GET("/orders/:id", h.Get)
	authed.POST("/orders/:id/screenshot", h.UploadScreenshot)
	return r
}

func TestCreateOrderHandler(t *testing.T) {
	listingID := uuid.NewString()

	tests := []struct {
		name           string
		body           string
		repoSetup      func(*fakeOrdersRepo)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"listingId": "` + listingID + `", "transactionId": "upi-txn-1234"}`,
			repoSetup: func(f *fakeOrdersRepo) {
				f.createFn = func(ctx context.Context, buyerID string, req order.CreateOrderRequest) (order.Order, error) {
					o := order.NewFromCreateRequest(buyerID, "seller-1", req)
					if o.Status != order.StatusPending {
						t.Fatalf("new order status = %q", o.Status)
					}
					return o, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name: "own_listing",
			body: `{"listingId": "` + listingID + `", "transactionId": "upi-txn-1234"}`,
			repoSetup: func(f *fakeOrdersRepo) {
				f.createFn = func(ctx context.Context, buyerID string, req order.CreateOrderRequest) (order.Order, error) {
					return order.Order{}, order.ErrOwnListing
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "listing_gone",
			body: `{"listingId": "` + listingID + `", "transactionId": "upi-txn-1234"}`,
			repoSetup: func(f *fakeOrdersRepo) {
				f.createFn = func(ctx context.Context, buyerID string, req order.CreateOrderRequest) (order.Order, error) {
					return order.Order{}, listing.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "missing_transaction_id",
			body:           `{"listingId": "` + listingID + `"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "short_transaction_id",
			body:           `{"listingId": "` + listingID + `", "transactionId": "abc"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "malformed_listing_id",
			body:           `{"listingId": "not-a-uuid", "transactionId": "upi-txn-1234"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeOrdersRepo{}
			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			r := newOrdersRouter(t, repo)

			req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", bearerFor(t, "buyer-1", user.RoleBuyer))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestGetOrderHidesForeignOrders(t *testing.T) {
	orderID := uuid.NewString()

	repo := &fakeOrdersRepo{
		getFn: func(ctx context.Context, id string) (order.Order, error) {
			return order.Order{ID: id, BuyerID: "buyer-1", SellerID: "seller-1", Status: order.StatusPending}, nil
		},
	}

	r := newOrdersRouter(t, repo)

	tests := []struct {
		name           string
		userID         string
		role           string
		wantStatusCode int
	}{
		{name: "buyer_sees_it", userID: "buyer-1", role: user.RoleBuyer, wantStatusCode: http.StatusOK},
		{name: "seller_sees_it", userID: "seller-1", role: user.RoleBuyer, wantStatusCode: http.StatusOK},
		{name: "admin_sees_it", userID: "admin-1", role: user.RoleAdmin, wantStatusCode: http.StatusOK},
		{name: "stranger_gets_404", userID: "stranger", role: user.RoleBuyer, wantStatusCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/orders/"+orderID, nil)
			req.Header.Set("Authorization", bearerFor(t, tt.userID, tt.role))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func multipartScreenshot(t *testing.T, filename string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("screenshot", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadScreenshotHandler(t *testing.T) {
	orderID := uuid.NewString()

	tests := []struct {
		name           string
		filename       string
		orderBuyer     string
		getErr         error
		wantStatusCode int
		wantFiles      int
	}{
		{name: "png_accepted", filename: "payment.png", orderBuyer: "buyer-1", wantStatusCode: http.StatusOK, wantFiles: 1},
		{name: "exe_rejected", filename: "payload.exe", orderBuyer: "buyer-1", wantStatusCode: http.StatusBadRequest},
		{name: "foreign_order", filename: "payment.png", orderBuyer: "someone-else", wantStatusCode: http.StatusNotFound},
		{name: "missing_order", filename: "payment.png", getErr: order.ErrNotFound, wantStatusCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeOrdersRepo{
				getFn: func(ctx context.Context, id string) (order.Order, error) {
					if tt.getErr != nil {
						return order.Order{}, tt.getErr
					}
					return order.Order{ID: id, BuyerID: tt.orderBuyer, Status: order.StatusPending}, nil
				},
				setScreenshotFn: func(ctx context.Context, id, buyerID, url string) (order.Order, error) {
					if url == "" {
						return order.Order{}, errors.New("empty url")
					}
					return order.Order{ID: id, BuyerID: buyerID, ScreenshotURL: url}, nil
				},
			}

			dir := t.TempDir()
			screenshots, err := storage.NewDiskStore(dir, "/uploads")
			if err != nil {
				t.Fatalf("disk store: %v", err)
			}

			h := handlers.NewOrdersHandler(repo, screenshots)
			mw := middlewares.NewAuthMiddleware(testJWT())

			r := gin.New()
			authed := r.Group("/", mw.RequireAuth())
			authed.POST("/orders/:id/screenshot", h.UploadScreenshot)

			body, contentType := multipartScreenshot(t, tt.filename)
			req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID+"/screenshot", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", bearerFor(t, "buyer-1", user.RoleBuyer))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			// rejected uploads must not leave blobs behind
			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatalf("read upload dir: %v", err)
			}
			if len(entries) != tt.wantFiles {
				t.Fatalf("upload dir holds %d files, want %d", len(entries), tt.wantFiles)
			}
		})
	}
}
