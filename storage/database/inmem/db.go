package inmemdb

import (
	"sync"

	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
	syncx "github.com/RidhwanAhamed/aqademiq-sync/core/sync"
	"github.com/RidhwanAhamed/aqademiq-sync/core/user"
)

type (
	DB struct {
		mutex sync.RWMutex

		users       map[string]*user.User
		blocks      map[string]*schedule.ScheduleBlock
		assignments map[string]*schedule.Assignment
		exams       map[string]*schedule.Exam

		credentials map[string]*syncx.Credential       // by user id
		mappings    map[string]*syncx.EventMapping     // by mapping id
		conflicts   map[string]*syncx.Conflict         // by conflict id
		operations  []*syncx.Operation                 // append-only
		syncTokens  map[[2]string]*syncx.Token         // by (user id, calendar id)
		channels    map[string]*syncx.Channel          // by channel id
	}
)

func Open() (*DB, error) {
	db := &DB{
		users:       make(map[string]*user.User),
		blocks:      make(map[string]*schedule.ScheduleBlock),
		assignments: make(map[string]*schedule.Assignment),
		exams:       make(map[string]*schedule.Exam),
		credentials: make(map[string]*syncx.Credential),
		mappings:    make(map[string]*syncx.EventMapping),
		conflicts:   make(map[string]*syncx.Conflict),
		syncTokens:  make(map[[2]string]*syncx.Token),
		channels:    make(map[string]*syncx.Channel),
	}
	return db, nil
}
