package mutation

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// Create validates payload, stamps server-controlled fields, stores the new
// record and returns it projected with every scalar field. payload holds the
// request body; its "model" key names the model.
func (e *Executor) Create(ctx context.Context, caller domain.Caller, payload map[string]any) (map[string]any, error) {
	name, _ := payload["model"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Errorf(domain.KindMissingModel, "model is required")
	}
	model, err := e.reg.Model(name)
	if err != nil {
		return nil, err
	}
	if !caller.Authenticated() {
		return nil, domain.Errorf(domain.KindForbidden, "authentication required")
	}
	if name == schema.ModelUser && !caller.Can(domain.PermCreateUser) {
		return nil, domain.Errorf(domain.KindForbidden, "not allowed to create users")
	}

	values, err := e.createValues(model, caller, payload)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	err = e.store.Atomic(ctx, func(tx repository.Tx) error {
		if model.Owner != "id" {
			if _, err := tx.Record(schema.ModelUser, caller.ID); err != nil {
				if domain.KindOf(err) == domain.KindNotFound {
					return domain.Errorf(domain.KindForbidden, "caller account does not exist")
				}
				return err
			}
		}

		id, err := tx.Insert(model.Name, values)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.Errorf(domain.KindValidation, "%s already taken", uniqueHint(model))
			}
			return err
		}

		out, err = project(tx, model, id, caller)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Executor) createValues(model *schema.Model, caller domain.Caller, payload map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k != "model" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	values := make(map[string]any)
	for _, k := range keys {
		f, ok := model.Field(k)
		if !ok || !f.Creatable {
			return nil, domain.Errorf(domain.KindValidation, "%s.%s cannot be set on create", model.Name, k)
		}
		v, err := checkValue(f, payload[k])
		if err != nil {
			return nil, err
		}
		values[k] = v
	}

	now := e.now()
	for _, f := range model.Fields() {
		switch {
		case f.Computed:
		case f.Name == model.Owner && f.Name != "id":
			values[f.Name] = caller.ID
		case f.Kind == schema.KindTime && !f.Creatable:
			values[f.Name] = now
		case f.Required:
			if _, ok := values[f.Name]; !ok {
				return nil, domain.Errorf(domain.KindValidation, "%s is required", f.Name)
			}
		}
	}
	return values, nil
}

// uniqueHint names the field a duplicate insert most likely collided on.
func uniqueHint(model *schema.Model) string {
	for _, f := range model.Fields() {
		if f.Creatable && f.Kind == schema.KindString {
			return f.Name
		}
	}
	return "value"
}
