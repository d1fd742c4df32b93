package models

import "time"

type TerminalStatus string

const (
	TerminalOnline      TerminalStatus = "online"
	TerminalOffline     TerminalStatus = "offline"
	TerminalMaintenance TerminalStatus = "maintenance"
	TerminalSuspended   TerminalStatus = "suspended"
)

func (s TerminalStatus) Valid() bool {
	switch s {
	case TerminalOnline, TerminalOffline, TerminalMaintenance, TerminalSuspended:
		return true
	}
	return false
}

type TerminalType string

const (
	TerminalTablet  TerminalType = "tablet"
	TerminalDesktop TerminalType = "desktop"
	TerminalMobile  TerminalType = "mobile"
	TerminalKiosk   TerminalType = "kiosk"
)

// Terminal: POS device. TenantID is always stored; when BranchID is set the
// branch must belong to the same tenant.
type Terminal struct {
	ID           uint           `gorm:"primaryKey"`
	TenantID     uint           `gorm:"index;not null"`
	Tenant       *Tenant        `gorm:"constraint:OnDelete:CASCADE"`
	BranchID     *uint          `gorm:"index"` // nil until provisioned to a site
	Branch       *Branch        `gorm:"constraint:OnDelete:CASCADE"`
	AssignedToID *uint          `gorm:"index"`
	AssignedTo   *User          `gorm:"constraint:OnDelete:SET NULL"`
	Name         string         `gorm:"size:255;not null"`
	DeviceID     string         `gorm:"size:100;not null;uniqueIndex"`
	DeviceType   TerminalType   `gorm:"size:20;not null"`
	AuthToken    string         `gorm:"size:255;not null;uniqueIndex"`
	Status       TerminalStatus `gorm:"size:20;not null;index"`
	IsActive     bool           `gorm:"not null"`
	LastSeen     *time.Time
	IPAddress    string `gorm:"size:45"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type TerminalLogType string

const (
	TerminalLogLogin   TerminalLogType = "login"
	TerminalLogLogout  TerminalLogType = "logout"
	TerminalLogOnline  TerminalLogType = "online"
	TerminalLogOffline TerminalLogType = "offline"
	TerminalLogStatus  TerminalLogType = "status"
	TerminalLogAssign  TerminalLogType = "assign"
	TerminalLogToken   TerminalLogType = "token"
	TerminalLogSale    TerminalLogType = "sale"
)

// TerminalLog: terminal activity trail
type TerminalLog struct {
	ID         uint            `gorm:"primaryKey"`
	TerminalID uint            `gorm:"index;not null"`
	LogType    TerminalLogType `gorm:"size:20;not null;index"`
	Message    string          `gorm:"size:255"`
	UserID     *uint
	Metadata   string    `gorm:"type:jsonb"`
	CreatedAt  time.Time `gorm:"index"`
}
