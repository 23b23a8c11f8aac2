package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigPathEnv = "CONFIG_FILE"

var (
	// ErrFileNotFound is returned when the config file does not exist.
	ErrFileNotFound = errors.New("config: file not found")
	// ErrInvalidTarget is returned for anything but a non-nil pointer to struct.
	ErrInvalidTarget = errors.New("config: target must be pointer to struct")
)

// LookupFunc resolves an environment key.
type LookupFunc func(key string) (string, bool)

// LoadConfig hydrates target from the YAML file named by CONFIG_FILE (optional) and the process
// environment.
func LoadConfig(target interface{}) error {
	return LoadFile(os.Getenv(defaultConfigPathEnv), target)
}

// LoadFile hydrates target from the YAML file at path and then applies environment overrides.
// An empty path skips the file.
func LoadFile(path string, target interface{}) error {
	return Load(path, target, os.LookupEnv)
}

// Load is LoadFile with an explicit environment. Nested structs map to PARENT_CHILD keys unless an
// explicit `env:"CUSTOM_KEY"` tag is present; `env:"-"` excludes a field and its children.
func Load(path string, target interface{}, lookup LookupFunc) error {
	val := reflect.ValueOf(target)
	if target == nil || val.Kind() != reflect.Ptr || val.IsNil() || val.Elem().Kind() != reflect.Struct {
		return ErrInvalidTarget
	}

	if path = strings.TrimSpace(path); path != "" {
		if err := decodeFile(path, target); err != nil {
			return err
		}
	}

	o := overrider{lookup: lookup}
	return o.apply(val.Elem(), "")
}

func decodeFile(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	case err != nil:
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("config: decode yaml %s: %w", path, err)
	}
	return nil
}

type overrider struct {
	lookup LookupFunc
}

func (o overrider) apply(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("env")
		if tag == "-" {
			continue
		}
		fv := v.Field(i)

		switch {
		case field.Anonymous && fv.Kind() == reflect.Struct:
			if err := o.apply(fv, prefix); err != nil {
				return err
			}
			continue
		case fv.Kind() == reflect.Struct:
			if err := o.apply(fv, envKey(prefix, field.Name, tag)); err != nil {
				return err
			}
			continue
		}

		key := envKey(prefix, field.Name, tag)
		raw, ok := o.lookup(key)
		if !ok {
			continue
		}
		if err := setValue(fv, raw); err != nil {
			return fmt.Errorf("config: parse %s: %w", key, err)
		}
	}
	return nil
}

// envKey prefers the explicit tag, otherwise PREFIX_FIELD in upper snake case.
func envKey(prefix, name, tag string) string {
	if tag != "" {
		return strings.ToUpper(strings.ReplaceAll(tag, "-", "_"))
	}
	name = strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

var durationType = reflect.TypeOf(time.Duration(0))

func setValue(field reflect.Value, raw string) error {
	t := field.Type()
	if t == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch t.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, t.Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, t.Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if t.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", t)
		}
		out := reflect.MakeSlice(t, 0, strings.Count(raw, ",")+1)
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = reflect.Append(out, reflect.ValueOf(part).Convert(t.Elem()))
			}
		}
		field.Set(out)
	default:
		return fmt.Errorf("unsupported field type %s", t)
	}
	return nil
}
