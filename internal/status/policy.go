package status

import "github.com/jemini-foods/api/internal/enum"

// mutators lists which entity kinds each acting role may change the status of.
var mutators = map[string]map[string]bool{
	enum.RoleAdmin:  {enum.KindOrder: true, enum.KindReservation: true},
	enum.RoleChef:   {enum.KindOrder: true},
	enum.RoleSystem: {enum.KindOrder: true, enum.KindReservation: true},
}

// CanMutate reports whether role may change the status of entities of kind.
func CanMutate(role, kind string) bool {
	return mutators[role][kind]
}
