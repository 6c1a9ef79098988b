package doctor

// groupDefinitions defines the check groups with their metadata.
var groupDefinitions = map[string]struct {
	Name        string
	Description string
	CheckIDs    []string
}{
	GroupProxmox: {
		Name:        "Proxmox VE",
		Description: "Proxmox tooling read by the readiness probe",
		CheckIDs:    []string{IDPveversion, IDPvesm, IDQm},
	},
	GroupHardware: {
		Name:        "Hardware probing",
		Description: "Tools that read CPU, RAM, disk, and kernel state",
		CheckIDs:    []string{IDLscpu, IDFree, IDDf, IDDmesg},
	},
	GroupNetwork: {
		Name:        "Network probing",
		Description: "Tools that enumerate NICs and bridges",
		CheckIDs:    []string{IDIP, IDEthtool},
	},
	GroupServices: {
		Name:        "Provisioning services",
		Description: "Services and package tooling used by provisioning tasks",
		CheckIDs:    []string{IDSshd, IDSystemctl, IDAptGet},
	},
}

// GetGroups returns all check groups in display order, without results.
func GetGroups() []CheckGroup {
	var groups []CheckGroup
	for _, groupID := range GetAllGroupIDs() {
		def := groupDefinitions[groupID]
		groups = append(groups, CheckGroup{
			ID:          groupID,
			Name:        def.Name,
			Description: def.Description,
		})
	}
	return groups
}

// GetGroupDefinition returns the definition for a specific group.
func GetGroupDefinition(groupID string) (struct {
	Name        string
	Description string
	CheckIDs    []string
}, bool) {
	def, ok := groupDefinitions[groupID]
	return def, ok
}

// GetAllGroupIDs returns all group IDs in display order.
func GetAllGroupIDs() []string {
	return []string{GroupProxmox, GroupHardware, GroupNetwork, GroupServices}
}
