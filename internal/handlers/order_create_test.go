package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"storefront/internal/notify"
)

func productDoc(id primitive.ObjectID, price float64, stock int) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: "Widget"},
		{Key: "price", Value: price},
		{Key: "stock", Value: stock},
		{Key: "isActive", Value: true},
	}
}

func createOrderRouter(mt *mtest.T, userID primitive.ObjectID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userId", userID) })
	r.POST("/orders", CreateOrder(mt.DB, notify.NewNotifier("", ""), notify.NewDocumentClient(""), 5))
	return r
}

func createOrderBody(productID primitive.ObjectID, quantity int) string {
	return `{
		"items":[{"productId":"` + productID.Hex() + `","quantity":` + strconv.Itoa(quantity) + `}],
		"shipping":{"name":"A","address":"1 Main St","city":"Pune","state":"MH","zip":"411001","phone":"9999999999"},
		"paymentMethod":"COD"
	}`
}

func TestCreateOrderRejectsUnderStockedItem(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("stock below requested quantity", func(mt *mtest.T) {
		productID := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(), // connectivity ping
			mtest.CreateCursorResponse(0, "storefront.products", mtest.FirstBatch, productDoc(productID, 100, 1)),
			mtest.CreateSuccessResponse(), // transaction abort
		)

		r := createOrderRouter(mt, primitive.NewObjectID())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders",
			bytes.NewBufferString(createOrderBody(productID, 2))))

		if w.Code != http.StatusConflict {
			t.Fatalf("under-stocked cart should return 409, got %d: %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), productID.Hex()) {
			t.Fatalf("conflict should identify the offending line, got %s", w.Body.String())
		}
	})
}

func TestCreateOrderRollsBackOnDecrementRace(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("stock drained between read and decrement", func(mt *mtest.T) {
		productID := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(), // connectivity ping
			mtest.CreateCursorResponse(0, "storefront.products", mtest.FirstBatch, productDoc(productID, 100, 5)),
			// The guarded decrement matches nothing: a concurrent order took
			// the stock after the read above.
			updateResultResponse(0, 0),
			mtest.CreateSuccessResponse(), // transaction abort
		)

		r := createOrderRouter(mt, primitive.NewObjectID())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders",
			bytes.NewBufferString(createOrderBody(productID, 2))))

		if w.Code != http.StatusConflict {
			t.Fatalf("lost decrement race should abort with 409, got %d: %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), "Insufficient stock") {
			t.Fatalf("conflict should report insufficient stock, got %s", w.Body.String())
		}
	})
}
