package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session.
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// AssignmentSnapshotKey returns the cache key for an assignment's catalog snapshot.
func (r *CacheKeyStruct) AssignmentSnapshotKey(assignmentID string) string {
	return fmt.Sprintf("assignment:%s:snapshot", assignmentID)
}

var CacheKey = NewCacheKeyStruct()
