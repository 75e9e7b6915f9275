package schema

import "entgo.io/ent"

// StringValidators returns the validators declared on the string field name,
// in declaration order, as ent's generated runtime would wire them.
func StringValidators(fields []ent.Field, name string) []func(string) error {
	return validators[func(string) error](fields, name)
}

// IntValidators is StringValidators for int fields.
func IntValidators(fields []ent.Field, name string) []func(int) error {
	return validators[func(int) error](fields, name)
}

func validators[F any](fields []ent.Field, name string) []F {
	var out []F
	for _, f := range fields {
		d := f.Descriptor()
		if d.Name != name {
			continue
		}
		for _, v := range d.Validators {
			if fn, ok := v.(F); ok {
				out = append(out, fn)
			}
		}
	}
	return out
}
