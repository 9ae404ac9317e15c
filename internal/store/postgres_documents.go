package store

import (
	"context"
	"encoding/json"
	"fmt"
)

const templateColumns = `id, organization_id, name, description, document_type, body, variables, created_by, created_at, updated_at`

func scanTemplate(row rowScanner) (PromptTemplate, error) {
	var tmpl PromptTemplate
	var variablesRaw []byte
	err := row.Scan(
		&tmpl.ID,
		&tmpl.OrganizationID,
		&tmpl.Name,
		&tmpl.Description,
		&tmpl.DocumentType,
		&tmpl.Body,
		&variablesRaw,
		&tmpl.CreatedBy,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if err != nil {
		return PromptTemplate{}, err
	}
	_ = json.Unmarshal(variablesRaw, &tmpl.Variables)
	return tmpl, nil
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (s *PostgresStore) InsertPromptTemplate(ctx context.Context, tmpl PromptTemplate) error {
	variables, err := encodeStrings(tmpl.Variables)
	if err != nil {
		return fmt.Errorf("encode template variables: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prompt_templates (id, organization_id, name, description, document_type, body, variables, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $9)
	`, tmpl.ID, tmpl.OrganizationID, tmpl.Name, tmpl.Description, tmpl.DocumentType, tmpl.Body, variables, tmpl.CreatedBy, tmpl.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert prompt template: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdatePromptTemplate(ctx context.Context, tmpl PromptTemplate) error {
	variables, err := encodeStrings(tmpl.Variables)
	if err != nil {
		return fmt.Errorf("encode template variables: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE prompt_templates
		SET name=$3, description=$4, document_type=$5, body=$6, variables=$7::jsonb, updated_at=$8
		WHERE organization_id=$1 AND id=$2
	`, tmpl.OrganizationID, tmpl.ID, tmpl.Name, tmpl.Description, tmpl.DocumentType, tmpl.Body, variables, tmpl.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update prompt template: %w", err)
	}
	ok, err := affectedOne(result, "update prompt template")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetPromptTemplate(ctx context.Context, orgID, id string) (PromptTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM prompt_templates WHERE organization_id=$1 AND id=$2`, orgID, id)
	tmpl, err := scanTemplate(row)
	if err != nil {
		return PromptTemplate{}, notFound(err)
	}
	return tmpl, nil
}

func (s *PostgresStore) ListPromptTemplates(ctx context.Context, orgID string) ([]PromptTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM prompt_templates
		WHERE organization_id=$1
		ORDER BY name ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list prompt templates: %w", err)
	}
	defer rows.Close()

	var templates []PromptTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt template: %w", err)
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

func (s *PostgresStore) DeletePromptTemplate(ctx context.Context, orgID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM prompt_templates WHERE organization_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete prompt template: %w", err)
	}
	ok, err := affectedOne(result, "delete prompt template")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

const documentColumns = `id, organization_id, matter_id, COALESCE(template_id, ''), title, status, content, error, commit_hash, created_by, created_at, updated_at`

func scanDocument(row rowScanner) (GeneratedDocument, error) {
	var doc GeneratedDocument
	err := row.Scan(
		&doc.ID,
		&doc.OrganizationID,
		&doc.MatterID,
		&doc.TemplateID,
		&doc.Title,
		&doc.Status,
		&doc.Content,
		&doc.Error,
		&doc.CommitHash,
		&doc.CreatedBy,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	return doc, err
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc GeneratedDocument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generated_documents (id, organization_id, matter_id, template_id, title, status, content, error, commit_hash, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $11)
	`, doc.ID, doc.OrganizationID, doc.MatterID, doc.TemplateID, doc.Title, doc.Status, doc.Content, doc.Error, doc.CommitHash, doc.CreatedBy, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, orgID, id string) (GeneratedDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM generated_documents WHERE organization_id=$1 AND id=$2`, orgID, id)
	doc, err := scanDocument(row)
	if err != nil {
		return GeneratedDocument{}, notFound(err)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, orgID, matterID string) ([]GeneratedDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM generated_documents
		WHERE organization_id=$1 AND matter_id=$2
		ORDER BY created_at DESC, id DESC
	`, orgID, matterID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []GeneratedDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateDocumentContent stores an edited draft; a FAILED document becomes a DRAFT once edited.
func (s *PostgresStore) UpdateDocumentContent(ctx context.Context, doc GeneratedDocument) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generated_documents
		SET title=$3, content=$4, commit_hash=$5, status='DRAFT', error='', updated_at=$6
		WHERE organization_id=$1 AND id=$2
	`, doc.OrganizationID, doc.ID, doc.Title, doc.Content, doc.CommitHash, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update document content: %w", err)
	}
	ok, err := affectedOne(result, "update document content")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertDamageCalculation(ctx context.Context, calc DamageCalculation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO damage_calculations (id, organization_id, matter_id, input, result, total, created_by, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6::numeric, $7, $8)
	`, calc.ID, calc.OrganizationID, calc.MatterID, string(calc.Input), string(calc.Result), calc.Total, calc.CreatedBy, calc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert damage calculation: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDamageCalculations(ctx context.Context, orgID, matterID string) ([]DamageCalculation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, matter_id, input, result, total::text, created_by, created_at
		FROM damage_calculations
		WHERE organization_id=$1 AND matter_id=$2
		ORDER BY created_at DESC, id DESC
	`, orgID, matterID)
	if err != nil {
		return nil, fmt.Errorf("list damage calculations: %w", err)
	}
	defer rows.Close()

	var calcs []DamageCalculation
	for rows.Next() {
		var calc DamageCalculation
		var inputRaw, resultRaw []byte
		if err := rows.Scan(&calc.ID, &calc.OrganizationID, &calc.MatterID, &inputRaw, &resultRaw, &calc.Total, &calc.CreatedBy, &calc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan damage calculation: %w", err)
		}
		calc.Input = inputRaw
		calc.Result = resultRaw
		calcs = append(calcs, calc)
	}
	return calcs, rows.Err()
}
