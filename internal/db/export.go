package db

import "encoding/json"

// ExportHostType is one entry of the export-info file: a host declaration a
// dependent package may reference (spec section 6: "Export info: JSON with
// {crate_name, crate_version, host_types: [{source_path, host_path, kind,
// size?}]}").
type ExportHostType struct {
	SourcePath string `json:"source_path"`
	HostPath   string `json:"host_path"`
	Kind       string `json:"kind"`
	Size       *int   `json:"size,omitempty"`
}

// ExportInfo is the small JSON sidecar written next to the binary database.
type ExportInfo struct {
	CrateName    string           `json:"crate_name"`
	CrateVersion string           `json:"crate_version"`
	HostTypes    []ExportHostType `json:"host_types"`
}

func (e ExportInfo) MarshalJSON() ([]byte, error) {
	type alias ExportInfo
	return json.MarshalIndent(alias(e), "", "  ")
}

// ExportInfo builds the export-info sidecar directly from the live
// Database's current items (spec section 4.G phase 6 / section 6), without
// requiring a round trip through a Snapshot.
func (d *Database) ExportInfo() ExportInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	info := ExportInfo{CrateName: d.CrateName, CrateVersion: d.CrateVersion}
	for _, it := range d.items {
		if it.HostPath == "" {
			continue
		}
		entry := ExportHostType{
			SourcePath: itemSourcePath(it),
			HostPath:   it.HostPath,
			Kind:       it.HostKind,
		}
		if it.HostSize > 0 {
			size := it.HostSize
			entry.Size = &size
		}
		info.HostTypes = append(info.HostTypes, entry)
	}
	return info
}

func snapshotToExportInfo(s *Snapshot) ExportInfo {
	info := ExportInfo{CrateName: s.CrateName, CrateVersion: s.CrateVersion}
	for _, it := range s.Items {
		if it.HostPath == "" {
			continue
		}
		entry := ExportHostType{
			SourcePath: itemSourcePath(it),
			HostPath:   it.HostPath,
			Kind:       it.HostKind,
		}
		if it.HostSize > 0 {
			size := it.HostSize
			entry.Size = &size
		}
		info.HostTypes = append(info.HostTypes, entry)
	}
	return info
}

func itemSourcePath(it Item) string {
	switch it.Payload.Kind {
	case ItemType:
		if it.Payload.Class != nil {
			return it.Payload.Class.Path.RenderHuman()
		}
		if it.Payload.Enum != nil {
			return it.Payload.Enum.Path.RenderHuman()
		}
	case ItemFunction:
		if it.Payload.Function != nil {
			return it.Payload.Function.Path.RenderHuman()
		}
	}
	return ""
}

// LoadExportInfo decodes an ExportInfo JSON document, the reverse of
// ExportInfo.MarshalJSON. No pipeline step calls it; dependency databases
// (spec section 4.H "dependency_databases") are not loaded from export info.
func LoadExportInfo(data []byte) (ExportInfo, error) {
	var info ExportInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return ExportInfo{}, err
	}
	return info, nil
}
