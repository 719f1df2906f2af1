package service

import (
	"context"
	"errors"
	"time"

	"transport-requisition/internal/lock"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
)

const assignLockWait = 5 * time.Second

func vehicleKey(id uuid.UUID) string { return "vehicle:" + id.String() }
func driverKey(id uuid.UUID) string  { return "driver:" + id.String() }

// resourceKeys lists the lock keys for whichever of vehicle and driver is
// set. Vehicle keys always come before driver keys so lock order is global.
func resourceKeys(vehicleID, driverID *uuid.UUID) []string {
	var keys []string
	if vehicleID != nil && *vehicleID != uuid.Nil {
		keys = append(keys, vehicleKey(*vehicleID))
	}
	if driverID != nil && *driverID != uuid.Nil {
		keys = append(keys, driverKey(*driverID))
	}
	return keys
}

// lockResources waits up to assignLockWait for every key. A timeout is
// reported as a Conflict on resource.
func lockResources(ctx context.Context, l lock.Locker, resource string, keys ...string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, assignLockWait)
	defer cancel()
	release, err := lock.AcquireAll(lockCtx, l, keys...)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, apperror.Conflict(resource, "vehicle or driver is being changed by another request")
	}
	if err != nil {
		return nil, err
	}
	return release, nil
}

func sameResource(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func derefOrNil(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
