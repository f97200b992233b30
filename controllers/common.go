package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// decodeField extracts an optional body field; absent and null both leave
// the destination nil.
func decodeField[T any](raw map[string]json.RawMessage, key string, dst **T) error {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return nil
	}
	var val T
	if err := json.Unmarshal(v, &val); err != nil {
		return fmt.Errorf("Invalid %s", key)
	}
	*dst = &val
	return nil
}

// decodeNullable is decodeField for fields where an explicit null means
// "clear the stored value". It reports whether the key was present at all.
func decodeNullable[T any](raw map[string]json.RawMessage, key string, dst **T) (bool, error) {
	v, ok := raw[key]
	if !ok {
		return false, nil
	}
	if string(v) == "null" {
		return true, nil
	}
	var val T
	if err := json.Unmarshal(v, &val); err != nil {
		return false, fmt.Errorf("Invalid %s", key)
	}
	*dst = &val
	return true, nil
}

// pagination parses the shared page/limit query params. Defaults are 1/10;
// non-numeric or non-positive values are rejected.
func pagination(c *gin.Context) (page, limit int, err error) {
	page, limit = 1, 10
	if v := c.Query("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page <= 0 {
			return 0, 0, errors.New("Invalid page")
		}
	}
	if v := c.Query("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return 0, 0, errors.New("Invalid limit")
		}
	}
	return page, limit, nil
}

func queryBool(c *gin.Context, key string) *bool {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	b := v == "true"
	return &b
}
