package shop

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Condition describes the state a car is sold in.
type Condition string

const (
	ConditionNew         Condition = "NEW"
	ConditionUsed        Condition = "USED"
	ConditionPreOwned    Condition = "PRE_OWNED"
	ConditionRepublic    Condition = "REPUBLIC"
	ConditionRepaired    Condition = "REPAIRED"
	ConditionSalvage     Condition = "SALVAGE"
	ConditionDemo        Condition = "DEMO"
	ConditionTestVehicle Condition = "TEST_VEHICLE"
)

// Conditions lists every condition in menu order.
var Conditions = []Condition{
	ConditionNew, ConditionUsed, ConditionPreOwned, ConditionRepublic,
	ConditionRepaired, ConditionSalvage, ConditionDemo, ConditionTestVehicle,
}

var conditionNames = map[Condition]string{
	ConditionNew:         "Новый",
	ConditionUsed:        "Поддержанный",
	ConditionPreOwned:    "С пробегом",
	ConditionRepublic:    "Восстановленный",
	ConditionRepaired:    "Ремонтированный",
	ConditionSalvage:     "Для восстановления",
	ConditionDemo:        "Демонстрационный",
	ConditionTestVehicle: "Тестовый",
}

// DisplayName returns the human readable name, or the raw token for unknown values.
func (c Condition) DisplayName() string {
	if name, ok := conditionNames[c]; ok {
		return name
	}
	return string(c)
}

func (c Condition) Valid() bool {
	_, ok := conditionNames[c]
	return ok
}

// ParseCondition maps a token such as "PRE_OWNED" to a Condition.
func ParseCondition(s string) (Condition, error) {
	c := Condition(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown car condition %q", s)
	}
	return c, nil
}

// Role controls which dashboards and operations a user can reach.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleClient  Role = "CLIENT"
)

// Roles lists every role in menu order.
var Roles = []Role{RoleAdmin, RoleManager, RoleClient}

var roleNames = map[Role]string{
	RoleAdmin:   "Администратор",
	RoleManager: "Менеджер",
	RoleClient:  "Клиент",
}

func (r Role) DisplayName() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "UNKNOWN_ROLE"
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusCanceled  OrderStatus = "CANCELED"
)

// Statuses lists every order status in menu order.
var Statuses = []OrderStatus{StatusPending, StatusCompleted, StatusCanceled}

var statusNames = map[OrderStatus]string{
	StatusPending:   "В ожидании подтверждения",
	StatusCompleted: "Завершенный",
	StatusCanceled:  "Отмененный",
}

func (s OrderStatus) DisplayName() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return string(s)
}

func (s OrderStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Reserves reports whether an order in this status keeps its car booked.
func (s OrderStatus) Reserves() bool { return s == StatusPending || s == StatusCompleted }

// Terminal reports whether no further status change is allowed.
func (s OrderStatus) Terminal() bool { return s == StatusCompleted || s == StatusCanceled }

// CanTransitionTo implements PENDING -> {COMPLETED, CANCELED}.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == StatusPending && (next == StatusCompleted || next == StatusCanceled)
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// Car is a vehicle offered by the dealership.
type Car struct {
	ID        int64           `json:"id"`
	Make      string          `json:"make"`
	Model     string          `json:"model"`
	Year      int             `json:"year"`
	Price     decimal.Decimal `json:"price"`
	Condition Condition       `json:"condition"`
}

// Title is "Make Model", used in listings and audit messages.
func (c Car) Title() string { return c.Make + " " + c.Model }

// User is a registered account.
type User struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	PasswordHash  string `json:"-"`
	Role          Role   `json:"role"`
	PurchaseCount int    `json:"purchase_count"`
}

// Order reserves a car for a client. References are kept by id.
type Order struct {
	ID       int64       `json:"id"`
	ClientID int64       `json:"client_id"`
	CarID    int64       `json:"car_id"`
	Date     time.Time   `json:"date"`
	Status   OrderStatus `json:"status"`
}

// OrderView is an order joined with the names of its client and car.
// Missing references are rendered as "(deleted)".
type OrderView struct {
	Order
	ClientName string `json:"client_name"`
	CarMake    string `json:"car_make"`
	CarModel   string `json:"car_model"`
}

// Audit is one append-only journal record. Username is a snapshot taken when
// the action was recorded so the record outlives the account.
type Audit struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Action   string    `json:"action"`
	Date     time.Time `json:"date"`
}
