package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/scalewatch/weight-monitor-backend/internal/database"
	"github.com/scalewatch/weight-monitor-backend/internal/models"
)

// MongoDeviceStore backs DeviceStore with the devices collection.
type MongoDeviceStore struct{}

func (MongoDeviceStore) FindByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	var device models.Device
	err := database.DB.Collection("devices").FindOne(ctx, bson.M{"deviceId": deviceID}).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (MongoDeviceStore) FindByOwner(ctx context.Context, userID string) (*models.Device, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, err
	}
	var device models.Device
	err = database.DB.Collection("devices").FindOne(ctx, bson.M{"userId": oid}).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (MongoDeviceStore) TouchLastActive(ctx context.Context, deviceID string, at time.Time) error {
	_, err := database.DB.Collection("devices").UpdateOne(ctx,
		bson.M{"deviceId": deviceID},
		bson.M{"$set": bson.M{"lastActive": at}})
	return err
}

// MongoReadingStore backs ReadingStore with the readings collection.
type MongoReadingStore struct{}

func (MongoReadingStore) Insert(ctx context.Context, reading *models.Reading) error {
	_, err := database.DB.Collection("readings").InsertOne(ctx, reading)
	return err
}
