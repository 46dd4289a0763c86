package validation

import "strings"

// CreateOrganizationInput is the body of POST /orgs.
type CreateOrganizationInput struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"required,max=50,slug"`
}

// ParseCreateOrganization validates a new organization.
func ParseCreateOrganization(raw []byte) (CreateOrganizationInput, error) {
	var in CreateOrganizationInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	in.Name = strings.TrimSpace(in.Name)
	if errs := check(in, ""); errs != nil {
		return in, errs
	}
	return in, nil
}

// CreateProjectInput is the body of POST /orgs/:id/projects.
type CreateProjectInput struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"required,max=50,slug"`
}

// ParseCreateProject validates a new project.
func ParseCreateProject(raw []byte) (CreateProjectInput, error) {
	var in CreateProjectInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	in.Name = strings.TrimSpace(in.Name)
	if errs := check(in, ""); errs != nil {
		return in, errs
	}
	return in, nil
}

// UpdateProjectInput is the partial body of PUT /projects/:id. Nil fields are left unchanged.
type UpdateProjectInput struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Slug *string `json:"slug,omitempty" validate:"omitempty,min=1,max=50,slug"`
}

// ParseUpdateProject validates a partial project update.
func ParseUpdateProject(raw []byte) (UpdateProjectInput, error) {
	var in UpdateProjectInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if errs := check(in, ""); errs != nil {
		return in, errs
	}
	return in, nil
}

// UpdateDomainInput is the body of PUT /projects/:id/domain. An empty domain clears it.
type UpdateDomainInput struct {
	Domain string `json:"domain" validate:"omitempty,max=253,fqdn"`
}

// ParseUpdateDomain validates a custom domain change.
func ParseUpdateDomain(raw []byte) (UpdateDomainInput, error) {
	var in UpdateDomainInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	in.Domain = strings.ToLower(strings.TrimSpace(in.Domain))
	if errs := check(in, ""); errs != nil {
		return in, errs
	}
	return in, nil
}

// AssetUploadInput is the body of POST /projects/:id/assets/upload-url.
type AssetUploadInput struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,oneof=image/png image/jpeg image/gif image/webp"`
}

// ParseAssetUpload validates a release image upload request.
func ParseAssetUpload(raw []byte) (AssetUploadInput, error) {
	var in AssetUploadInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	in.ContentType = strings.ToLower(strings.TrimSpace(in.ContentType))
	if errs := check(in, ""); errs != nil {
		return in, errs
	}
	return in, nil
}
