package valueobject

import "github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"

type ActorRole string

const (
	ActorCustomer ActorRole = "customer"
	ActorOperator ActorRole = "operator"
	ActorSystem   ActorRole = "system"
)

func NewActorRole(role string) (ActorRole, error) {
	r := ActorRole(role)
	switch r {
	case ActorCustomer, ActorOperator, ActorSystem:
		return r, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "некорректная роль")
}

// Actor автор перехода: заказчик, исполнитель или система (таймеры, свипы).
type Actor struct {
	Role ActorRole `json:"role"`
	ID   string    `json:"id"`
	Name string    `json:"name,omitempty"`
}

func Customer(id string) Actor { return Actor{Role: ActorCustomer, ID: id} }

func Operator(id string) Actor { return Actor{Role: ActorOperator, ID: id} }

func System(name string) Actor { return Actor{Role: ActorSystem, ID: name, Name: name} }

func (a Actor) IsCustomer(id string) bool { return a.Role == ActorCustomer && a.ID == id }

func (a Actor) IsOperator(id string) bool { return a.Role == ActorOperator && a.ID == id }

func (a Actor) IsSystem() bool { return a.Role == ActorSystem }

// Key уникальный ключ получателя, например "operator:42".
func (a Actor) Key() string { return string(a.Role) + ":" + a.ID }

func (a Actor) Validate() error {
	if _, err := NewActorRole(string(a.Role)); err != nil {
		return err
	}
	if a.ID == "" {
		return apperror.New(apperror.ErrCodeValidation, "не указан идентификатор участника")
	}
	return nil
}
