package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/oshokin/fwmeta/internal/domain/firmware"
)

// errVendorRequired is returned when firmware is saved without an uploading vendor.
var errVendorRequired = errors.New("firmware vendor is required")

// UpsertVendor stores the vendor by group id and replaces its restrictions.
func (r *SQLiteRepository) UpsertVendor(ctx context.Context, vendor *firmware.Vendor) (id int64, err error) {
	conn, err := r.pool.take(ctx)
	if err != nil {
		return 0, err
	}
	defer r.pool.put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("begin vendor: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `INSERT INTO vendors (group_id, is_unrestricted, embargo_remote_id)
		VALUES (?, ?, ?)
		ON CONFLICT (group_id) DO UPDATE SET
			is_unrestricted = excluded.is_unrestricted,
			embargo_remote_id = excluded.embargo_remote_id
		RETURNING vendor_id`, &sqlitex.ExecOptions{
		Args: []any{vendor.GroupID, boolInt(vendor.IsUnrestricted), vendor.EmbargoRemoteID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id = stmt.ColumnInt64(0)

			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("upsert vendor %s: %w", vendor.GroupID, err)
	}

	err = sqlitex.Execute(conn, `DELETE FROM vendor_restrictions WHERE vendor_id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
	})
	if err != nil {
		return 0, fmt.Errorf("clear restrictions: %w", err)
	}

	for i, value := range vendor.Restrictions {
		err = sqlitex.Execute(conn, `INSERT INTO vendor_restrictions (vendor_id, position, value) VALUES (?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{id, i, value}})
		if err != nil {
			return 0, fmt.Errorf("insert restriction: %w", err)
		}
	}

	return id, nil
}

// SaveFirmware stores fw by filename, replaces its components and marks
// both the archive and its remote dirty.
func (r *SQLiteRepository) SaveFirmware(ctx context.Context, fw *firmware.Firmware) (id int64, err error) {
	if fw.VendorID == 0 {
		return 0, fmt.Errorf("%s: %w", fw.Filename, errVendorRequired)
	}

	payloads := make([][]byte, len(fw.Components))
	for i, md := range fw.Components {
		if payloads[i], err = encodeComponent(md); err != nil {
			return 0, err
		}
	}

	conn, err := r.pool.take(ctx)
	if err != nil {
		return 0, err
	}
	defer r.pool.put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("begin firmware: %w", err)
	}
	defer endTransaction(&err)

	var signedAt any
	if fw.SignedAt != nil {
		signedAt = fw.SignedAt.UnixNano()
	}

	err = sqlitex.Execute(conn, `INSERT INTO firmware
		(remote_id, vendor_id, filename, is_dirty, signed_at,
		 checksum_upload_sha1, checksum_upload_sha256, checksum_signed_sha1, checksum_signed_sha256)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT (filename) DO UPDATE SET
			remote_id = excluded.remote_id,
			vendor_id = excluded.vendor_id,
			is_dirty = 1,
			signed_at = excluded.signed_at,
			checksum_upload_sha1 = excluded.checksum_upload_sha1,
			checksum_upload_sha256 = excluded.checksum_upload_sha256,
			checksum_signed_sha1 = excluded.checksum_signed_sha1,
			checksum_signed_sha256 = excluded.checksum_signed_sha256
		RETURNING firmware_id`, &sqlitex.ExecOptions{
		Args: []any{
			fw.RemoteID,
			fw.VendorID,
			fw.Filename,
			signedAt,
			fw.ChecksumUploadSHA1,
			fw.ChecksumUploadSHA256,
			fw.ChecksumSignedSHA1,
			fw.ChecksumSignedSHA256,
		},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id = stmt.ColumnInt64(0)

			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("upsert firmware %s: %w", fw.Filename, err)
	}

	err = sqlitex.Execute(conn, `DELETE FROM components WHERE firmware_id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
	})
	if err != nil {
		return 0, fmt.Errorf("clear components: %w", err)
	}

	for i, md := range fw.Components {
		err = sqlitex.Execute(conn, `INSERT INTO components (firmware_id, appstream_id, version, payload)
			VALUES (?, ?, ?, ?) RETURNING component_id`, &sqlitex.ExecOptions{
			Args: []any{id, md.AppstreamID, md.Version, payloads[i]},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				md.ID = stmt.ColumnInt64(0)

				return nil
			},
		})
		if err != nil {
			return 0, fmt.Errorf("insert component %s: %w", md.AppstreamID, err)
		}
	}

	err = sqlitex.Execute(conn, `UPDATE remotes SET is_dirty = 1 WHERE remote_id = ?`, &sqlitex.ExecOptions{
		Args: []any{fw.RemoteID},
	})
	if err != nil {
		return 0, fmt.Errorf("mark remote dirty: %w", err)
	}

	fw.ID = id
	fw.IsDirty = true
	fw.Attach()

	return id, nil
}

// ListFirmware loads every signed archive outside the private and deleted
// remotes together with its vendor and components, ordered by id.
func (r *SQLiteRepository) ListFirmware(ctx context.Context) ([]*firmware.Firmware, error) {
	conn, err := r.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer r.pool.put(conn)

	vendors, err := listVendors(conn)
	if err != nil {
		return nil, err
	}

	var (
		fws  []*firmware.Firmware
		byID = make(map[int64]*firmware.Firmware)
	)

	err = sqlitex.Execute(conn, `SELECT f.firmware_id, f.remote_id, r.name, f.vendor_id, f.filename,
			f.is_dirty, f.signed_at, f.checksum_upload_sha1, f.checksum_upload_sha256,
			f.checksum_signed_sha1, f.checksum_signed_sha256
		FROM firmware f JOIN remotes r ON r.remote_id = f.remote_id
		WHERE r.name NOT IN (?, ?) AND f.signed_at IS NOT NULL
		ORDER BY f.firmware_id`, &sqlitex.ExecOptions{
		Args: []any{firmware.RemotePrivate, firmware.RemoteDeleted},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			signedAt := time.Unix(0, stmt.ColumnInt64(6)).UTC()
			fw := &firmware.Firmware{
				ID:                   stmt.ColumnInt64(0),
				RemoteID:             stmt.ColumnInt64(1),
				RemoteName:           stmt.ColumnText(2),
				VendorID:             stmt.ColumnInt64(3),
				Filename:             stmt.ColumnText(4),
				IsDirty:              stmt.ColumnInt64(5) != 0,
				SignedAt:             &signedAt,
				ChecksumUploadSHA1:   stmt.ColumnText(7),
				ChecksumUploadSHA256: stmt.ColumnText(8),
				ChecksumSignedSHA1:   stmt.ColumnText(9),
				ChecksumSignedSHA256: stmt.ColumnText(10),
			}
			fw.VendorODM = vendors[fw.VendorID]
			fws = append(fws, fw)
			byID[fw.ID] = fw

			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list firmware: %w", err)
	}

	err = sqlitex.Execute(conn, `SELECT component_id, firmware_id, payload FROM components ORDER BY component_id`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				fw, ok := byID[stmt.ColumnInt64(1)]
				if !ok {
					return nil
				}

				payload := make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, payload)

				md, err := decodeComponent(payload)
				if err != nil {
					return err
				}

				md.ID = stmt.ColumnInt64(0)
				fw.Components = append(fw.Components, md)

				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}

	for _, fw := range fws {
		fw.Attach()
	}

	return fws, nil
}

func listVendors(conn *sqlite.Conn) (map[int64]*firmware.Vendor, error) {
	vendors := make(map[int64]*firmware.Vendor)

	err := sqlitex.Execute(conn, `SELECT vendor_id, group_id, is_unrestricted, embargo_remote_id FROM vendors`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				vendor := &firmware.Vendor{
					ID:              stmt.ColumnInt64(0),
					GroupID:         stmt.ColumnText(1),
					IsUnrestricted:  stmt.ColumnInt64(2) != 0,
					EmbargoRemoteID: stmt.ColumnInt64(3),
				}
				vendors[vendor.ID] = vendor

				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}

	err = sqlitex.Execute(conn, `SELECT vendor_id, value FROM vendor_restrictions ORDER BY vendor_id, position`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if vendor, ok := vendors[stmt.ColumnInt64(0)]; ok {
					vendor.Restrictions = append(vendor.Restrictions, stmt.ColumnText(1))
				}

				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("list vendor restrictions: %w", err)
	}

	return vendors, nil
}
