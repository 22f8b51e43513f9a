package models

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

func (r Role) String() string {
	return string(r)
}

func IsValidRole(role string) bool {
	switch Role(role) {
	case RoleStudent, RoleTeacher:
		return true
	default:
		return false
	}
}

// User is a directory profile. AuthSubject is the token subject issued by
// the auth service; the role never changes after creation.
type User struct {
	ID          string    `json:"id" db:"id"`
	AuthSubject string    `json:"-" db:"auth_subject"`
	Name        string    `json:"name" db:"name"`
	Role        Role      `json:"role" db:"role"`
	Department  string    `json:"department" db:"department"`
	Email       *string   `json:"email,omitempty" db:"email"`
	StudentID   *string   `json:"student_id,omitempty" db:"student_id"`
	Semester    *int      `json:"semester,omitempty" db:"semester"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

type StudentFilter struct {
	Department string
	Semester   int
	Limit      int
	Offset     int
}

// Identity is the verified caller of a request, taken from the access token.
type Identity struct {
	Subject string
	Role    Role
}
