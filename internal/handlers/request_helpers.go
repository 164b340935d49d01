package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v", route, r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Client().Ping(checkCtx, readpref.Primary())
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	log.Printf("[%s] returning error %d: %s", route, status, message)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// userIDFromContext returns the verified user id injected by the auth
// middleware, or a zero ObjectID when the request carries none.
func userIDFromContext(c *gin.Context) primitive.ObjectID {
	value, exists := c.Get("userId")
	if !exists {
		return primitive.NilObjectID
	}
	userID, ok := value.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID
	}
	return userID
}

func isAdminRequest(c *gin.Context) bool {
	role, _ := c.Get("role")
	value, ok := role.(string)
	return ok && value == "ADMIN"
}
