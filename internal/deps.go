package internal

import (
	"skygen/waitlist-api/internal/service"
	"skygen/waitlist-api/internal/waitlist"

	"gorm.io/gorm"
)

type Deps struct {
	DB       *gorm.DB
	Waitlist *waitlist.Service
	Mailer   service.Mailer
}
