package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mkernan/questboard/internal/progression"
	"gorm.io/gorm"
)

// errorCode is the machine-readable tag clients branch on.
type errorCode string

const (
	codeNotFound        errorCode = "not_found"
	codeForbidden       errorCode = "forbidden"
	codeInvalidState    errorCode = "invalid_state"
	codeObjectiveLocked errorCode = "objective_locked"
	codeValidation      errorCode = "validation"
	codeDeadlinePassed  errorCode = "deadline_passed"
	codeInternal        errorCode = "internal"
)

// writeError maps an engine error onto an HTTP status and JSON body.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := codeInternal

	switch {
	case errors.Is(err, progression.ErrNotFound):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, progression.ErrForbidden):
		status, code = http.StatusForbidden, codeForbidden
	case errors.Is(err, progression.ErrObjectiveLocked):
		status, code = http.StatusConflict, codeObjectiveLocked
	case errors.Is(err, progression.ErrInvalidState):
		status, code = http.StatusConflict, codeInvalidState
	case errors.Is(err, progression.ErrDeadlinePassed):
		status, code = http.StatusConflict, codeDeadlinePassed
	case errors.Is(err, progression.ErrValidation):
		status, code = http.StatusBadRequest, codeValidation
	}

	body := gin.H{"code": code}
	if status != http.StatusInternalServerError {
		body["error"] = err.Error()
	} else {
		// Internal details stay in the log.
		body["error"] = "internal error"
	}
	c.JSON(status, body)
}

// writeQuestError maps quest-definition errors. The quest package reports
// missing rows with gorm.ErrRecordNotFound; everything else it returns is a
// caller mistake.
func writeQuestError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": codeNotFound, "error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": err.Error()})
}
