package auth

// AuthContext identifies the caller for every engine entry point that needs
// identity. It replaces session lookups: all ids are explicit parameters.
type AuthContext struct {
	UserID  int64 `json:"user_id"`
	IsAdmin bool  `json:"is_admin"`
}

// Permission names as stored in the perm_items table. Templates bundle these;
// the resolver returns them verbatim in effective permission sets.
const (
	PermZoneContentViewOwn    = "zone_content_view_own"
	PermZoneContentEditOwn    = "zone_content_edit_own"
	PermZoneContentViewOthers = "zone_content_view_others"
	PermZoneContentEditOthers = "zone_content_edit_others"
	PermZoneMetaEditOwn       = "zone_meta_edit_own"
	PermZoneMetaEditOthers    = "zone_meta_edit_others"
	PermZoneMasterAdd         = "zone_master_add"
	PermZoneSlaveAdd          = "zone_slave_add"
	PermZoneTemplAdd          = "zone_templ_add"
	PermZoneTemplEdit         = "zone_templ_edit"
	PermUserViewOthers        = "user_view_others"
	PermUserEditOwn           = "user_edit_own"
	PermUserEditOthers        = "user_edit_others"
	PermUserIsUeberuser       = "user_is_ueberuser"
)
