package provision

import _ "embed"

// sshdDropInTemplate is the sshd hardening drop-in. ${PERMIT_ROOT_LOGIN}
// and ${ALLOW_USERS_LINE} are substituted at apply time.
//
//go:embed assets/99-pvekit-harden.conf.tmpl
var sshdDropInTemplate string

// aptHookContent re-runs the nag patch whenever apt replaces
// proxmoxlib.js.
//
//go:embed assets/99-pvekit-nag
var aptHookContent string
