// Package handler holds request helpers shared by the resource handlers.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
	"github.com/jwalitptl/clinic-scheduler/pkg/validator"
)

// BindJSON binds the body into req and writes a 400 on failure.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(validator.Describe(err)))
		return false
	}
	return true
}

// BindQuery binds the query string into req and writes a 400 on failure.
func BindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(validator.Describe(err)))
		return false
	}
	return true
}

// UUIDParam parses a path parameter and writes a 400 when it is malformed.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validationf("%s must be a valid id", name))
		return uuid.Nil, false
	}
	return id, true
}

// Caller returns the authenticated caller and writes a 401 when there is none.
func Caller(c *gin.Context) (*model.Caller, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthenticated(nil))
		return nil, false
	}
	return caller, true
}
