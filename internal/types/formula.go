package types

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FormulaRecord is one versioned coating-process recipe attempt under a
// design task. The record index is generated client-side before creation and
// never changes; the version label and the AI analysis field are written only
// by the server.
type FormulaRecord struct {
	Index           string           `gorm:"column:index;primaryKey;size:64" json:"index"`
	DesignTaskIndex string           `gorm:"column:design_task_index;size:64;not null;index" json:"designTaskIndex"`
	DesignTask      *DesignTask      `gorm:"constraint:OnDelete:CASCADE;foreignKey:DesignTaskIndex;references:Index" json:"design_task,omitempty"`
	Version         *string          `gorm:"column:version;size:32" json:"version,omitempty"`
	Status          *QualifiedStatus `gorm:"column:formula_qualified_status;not null;default:0" json:"formula_qualified_status,omitempty"`

	// Substrate layers, 1-3 entries, never empty after normalization.
	BaseMaterials datatypes.JSONSlice[string] `gorm:"column:base_materials" json:"baseMaterials"`

	// Process parameters, free text as entered on the bench sheet.
	ACBRatio          string `gorm:"column:acb_ratio" json:"acbRatio"`
	ViscosityAC       string `gorm:"column:viscosity_ac" json:"viscosityAC"`
	ViscosityB        string `gorm:"column:viscosity_b" json:"viscosityB"`
	BakingTemperature string `gorm:"column:baking_temperature" json:"bakingTemperature"`
	BakingTime        string `gorm:"column:baking_time" json:"bakingTime"`
	SurfaceDryTime    string `gorm:"column:surface_dry_time" json:"surfaceDryTime"`
	FullDryTime       string `gorm:"column:full_dry_time" json:"fullDryTime"`
	FilmThickness     string `gorm:"column:film_thickness" json:"filmThickness"`

	// Performance ratings (1-5) and appearance descriptors.
	Hardness         string `gorm:"column:hardness" json:"hardness"`
	AdhesionRating   string `gorm:"column:adhesion_rating" json:"adhesionRating"`
	ImpactRating     string `gorm:"column:impact_rating" json:"impactRating"`
	GlossLevel       string `gorm:"column:gloss_level" json:"glossLevel"`
	ColorDescription string `gorm:"column:color_description" json:"colorDescription"`
	Appearance       string `gorm:"column:appearance" json:"appearance"`

	ACSolutionComposition datatypes.JSONSlice[SolutionComposition] `gorm:"column:ac_solution_composition" json:"acSolutionComposition"`
	BSolutionComposition  datatypes.JSONSlice[SolutionComposition] `gorm:"column:b_solution_composition" json:"bSolutionComposition"`

	SpecialRecord               string `gorm:"column:special_record;type:text" json:"specialRecord"`
	UnqualifiedReason           string `gorm:"column:formula_unqualified_reason;type:text" json:"formula_unqualified_reason"`
	AIAnalysisUnqualifiedReason string `gorm:"column:ai_analysis_unqualified_reason;type:text" json:"ai_analysis_unqualified_reason"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (FormulaRecord) TableName() string { return "formula_record" }

// StatusOrPending resolves the nullable status column; records that have
// never been persisted count as pending.
func (f *FormulaRecord) StatusOrPending() QualifiedStatus {
	if f == nil || f.Status == nil {
		return StatusPending
	}
	return *f.Status
}

// Clone deep-copies the record, including both composition trees, so cached
// snapshots can be patched without aliasing.
func (f *FormulaRecord) Clone() *FormulaRecord {
	if f == nil {
		return nil
	}
	out := *f
	if f.Version != nil {
		v := *f.Version
		out.Version = &v
	}
	if f.Status != nil {
		s := *f.Status
		out.Status = &s
	}
	if f.BaseMaterials != nil {
		out.BaseMaterials = append(datatypes.JSONSlice[string]{}, f.BaseMaterials...)
	}
	out.ACSolutionComposition = CloneCompositions(f.ACSolutionComposition)
	out.BSolutionComposition = CloneCompositions(f.BSolutionComposition)
	return &out
}

// ApplyMutableFields overwrites everything a caller may edit, leaving index,
// version, status and the AI analysis field untouched.
func (f *FormulaRecord) ApplyMutableFields(in *FormulaRecord) {
	f.BaseMaterials = datatypes.NewJSONSlice(NormalizeBaseMaterials(in.BaseMaterials))
	f.ACBRatio = in.ACBRatio
	f.ViscosityAC = in.ViscosityAC
	f.ViscosityB = in.ViscosityB
	f.BakingTemperature = in.BakingTemperature
	f.BakingTime = in.BakingTime
	f.SurfaceDryTime = in.SurfaceDryTime
	f.FullDryTime = in.FullDryTime
	f.FilmThickness = in.FilmThickness
	f.Hardness = in.Hardness
	f.AdhesionRating = in.AdhesionRating
	f.ImpactRating = in.ImpactRating
	f.GlossLevel = in.GlossLevel
	f.ColorDescription = in.ColorDescription
	f.Appearance = in.Appearance
	f.ACSolutionComposition = datatypes.NewJSONSlice(CloneCompositions(in.ACSolutionComposition))
	f.BSolutionComposition = datatypes.NewJSONSlice(CloneCompositions(in.BSolutionComposition))
	f.SpecialRecord = in.SpecialRecord
}
