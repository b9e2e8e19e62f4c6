package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// Provider crea un campo para el nombre del provider social.
func Provider(v string) zap.Field {
	return zap.String("provider", v)
}

// ProviderUserID crea un campo para el ID del usuario en el provider.
func ProviderUserID(v string) zap.Field {
	return zap.String("provider_user_id", v)
}

// IdentityID crea un campo para el ID de la identidad social.
func IdentityID(v string) zap.Field {
	return zap.String("identity_id", v)
}

// Owner crea campos para la referencia polimórfica del dueño.
func Owner(kind, id string) zap.Field {
	return zap.String("owner", kind+"/"+id)
}

// Outcome crea un campo para el resultado de un callback.
func Outcome(v string) zap.Field {
	return zap.String("outcome", v)
}

// Flow crea un campo para el flujo (login | link).
func Flow(v string) zap.Field {
	return zap.String("flow", v)
}

// Email crea un campo para el email (usar con cuidado en prod).
func Email(v string) zap.Field {
	return zap.String("email", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (service, repository, reporter).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS GENÉRICOS
// =================================================================================

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
