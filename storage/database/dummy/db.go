// Package dummydb keeps every table in memory. It backs the API tests and local runs without postgres.
package dummydb

import (
	"sync"

	"github.com/trezcool/quizhub/core/attempt"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/coursework"
	"github.com/trezcool/quizhub/core/discussion"
	"github.com/trezcool/quizhub/core/enrollment"
	"github.com/trezcool/quizhub/core/material"
	"github.com/trezcool/quizhub/core/notification"
	"github.com/trezcool/quizhub/core/user"
)

type teacherSubjectKey struct {
	teacherID, subjectID int
}

// DB guards all tables with one lock so joins and cascades see a consistent state.
type DB struct {
	sync.RWMutex
	seq map[string]int

	users           map[int]user.User
	branches        map[int]catalog.Branch
	subjects        map[int]catalog.Subject
	chapters        map[int]catalog.Chapter
	quizzes         map[int]catalog.Quiz
	questions       map[int]catalog.Question
	teacherSubjects map[teacherSubjectKey]catalog.TeacherSubject
	scores          map[int]attempt.Score
	enrollments     map[int]enrollment.Enrollment
	messages        map[int]discussion.Message
	materials       map[int]material.Material
	assignments     map[int]coursework.Assignment
	submissions     map[int]coursework.Submission
	notifications   map[int]notification.Notification
}

func Open() (*DB, error) {
	db := &DB{
		seq:             make(map[string]int),
		users:           make(map[int]user.User),
		branches:        make(map[int]catalog.Branch),
		subjects:        make(map[int]catalog.Subject),
		chapters:        make(map[int]catalog.Chapter),
		quizzes:         make(map[int]catalog.Quiz),
		questions:       make(map[int]catalog.Question),
		teacherSubjects: make(map[teacherSubjectKey]catalog.TeacherSubject),
		scores:          make(map[int]attempt.Score),
		enrollments:     make(map[int]enrollment.Enrollment),
		messages:        make(map[int]discussion.Message),
		materials:       make(map[int]material.Material),
		assignments:     make(map[int]coursework.Assignment),
		submissions:     make(map[int]coursework.Submission),
		notifications:   make(map[int]notification.Notification),
	}
	return db, nil
}

// nextID is the serial of a table. Lock must be held.
func (db *DB) nextID(table string) int {
	db.seq[table]++
	return db.seq[table]
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// matchesIDs mirrors `col = ANY(ids)`: nil means no filter, empty matches nothing.
func matchesIDs(ids []int, id int) bool {
	return ids == nil || containsInt(ids, id)
}
