package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	mdataffi "github.com/safeclient/mdata-ffi"
	"github.com/safeclient/mdata-ffi/resource"
	"github.com/safeclient/mdata-ffi/wire"
)

// LocalDispatcher is a pure-Go engine used by tests and the CLI. It keeps
// objects in process memory and implements the same operation surface and
// result codes as a wasm engine, so client code is exercised against
// realistic semantics without a module binary.
type LocalDispatcher struct {
	mu      sync.Mutex
	mem     *localMemory
	alloc   *localAllocator
	arena   *resource.Arena
	objects map[objKey]*mdObject
	closed  bool
}

type objKey struct {
	name wire.XorName
	tag  uint64
}

type mdObject struct {
	entries      map[string]wire.Value
	perms        map[wire.SignKeyHandle]wire.PermissionSet
	permsVersion uint64
}

// Handle payloads held in the arena.

type permsObj struct {
	sets []wire.UserPermissionSet
}

type entriesObj struct {
	entries []wire.Entry
}

type actionKind uint8

const (
	actionInsert actionKind = iota
	actionUpdate
	actionDelete
)

type entryAction struct {
	kind    actionKind
	key     []byte
	content []byte
	version uint64
}

type actionsObj struct {
	actions []entryAction
}

// NewLocalDispatcher creates an in-process engine.
func NewLocalDispatcher() *LocalDispatcher {
	return &LocalDispatcher{
		mem:     newLocalMemory(),
		arena:   resource.NewArena(),
		objects: make(map[objKey]*mdObject),
	}
}

func (d *LocalDispatcher) init() {
	if d.alloc == nil {
		d.alloc = &localAllocator{mem: d.mem}
	}
}

// Memory returns the engine's flat memory.
func (d *LocalDispatcher) Memory() mdataffi.Memory { return d.mem }

// Allocator returns the engine's bump allocator.
func (d *LocalDispatcher) Allocator() mdataffi.Allocator {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.init()
	return d.alloc
}

// Arena exposes the handle arena, mainly so tests can attach a leak checker.
func (d *LocalDispatcher) Arena() *resource.Arena { return d.arena }

// Invoke runs fn on a fresh goroutine and delivers its completion exactly once.
func (d *LocalDispatcher) Invoke(ctx context.Context, fn mdataffi.FuncID, args []uint64, done func(mdataffi.Completion)) {
	go func() {
		done(d.dispatch(fn, args))
	}()
}

// Close releases all live handles and drops stored objects.
func (d *LocalDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.objects = make(map[objKey]*mdObject)
	return d.arena.Close()
}

func fault(code int32) mdataffi.Completion {
	return mdataffi.Completion{Code: code, Desc: codeDesc(code)}
}

func ok(out ...uint64) mdataffi.Completion {
	return mdataffi.Completion{Out: out}
}

func (d *LocalDispatcher) dispatch(fn mdataffi.FuncID, args []uint64) mdataffi.Completion {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fault(CodeBadArguments)
	}
	d.init()

	switch fn {
	case mdataffi.FnInfoSerialise:
		return d.infoSerialise(args)
	case mdataffi.FnInfoDeserialise:
		return d.infoDeserialise(args)
	case mdataffi.FnPut:
		return d.put(args)
	case mdataffi.FnGetVersion:
		return d.withObject(args, func(obj *mdObject) mdataffi.Completion {
			return ok(obj.permsVersion)
		})
	case mdataffi.FnSerialisedSize:
		return d.withObject(args, func(obj *mdObject) mdataffi.Completion {
			var size uint64 = wire.InfoSize
			for key, val := range obj.entries {
				size += uint64(len(key)) + uint64(len(val.Content)) + wire.EntrySize
			}
			return ok(size)
		})
	case mdataffi.FnGetValue:
		return d.getValue(args)
	case mdataffi.FnListEntries:
		return d.listEntries(args)
	case mdataffi.FnListKeys:
		return d.listKeys(args)
	case mdataffi.FnListValues:
		return d.listValues(args)
	case mdataffi.FnMutateEntries:
		return d.mutateEntries(args)
	case mdataffi.FnListPermissions:
		return d.listPermissions(args)
	case mdataffi.FnListPermissionSets:
		return d.listPermissionSets(args)
	case mdataffi.FnListUserPermissions:
		return d.listUserPermissions(args)
	case mdataffi.FnSetUserPermissions:
		return d.setUserPermissions(args)
	case mdataffi.FnDelUserPermissions:
		return d.delUserPermissions(args)
	case mdataffi.FnPermissionsNew:
		h, err := d.arena.Create(resource.KindPermissions, &permsObj{})
		if err != nil {
			return fault(CodeBadArguments)
		}
		return ok(uint64(h))
	case mdataffi.FnPermissionsLen:
		return withHandle(d, args, func(p *permsObj, _ []uint64) mdataffi.Completion {
			return ok(uint64(len(p.sets)))
		})
	case mdataffi.FnPermissionsGet:
		return d.permissionsGet(args)
	case mdataffi.FnPermissionsInsert:
		return d.permissionsInsert(args)
	case mdataffi.FnPermissionsFree:
		return d.freeHandle(args, resource.KindPermissions)
	case mdataffi.FnEntriesNew:
		h, err := d.arena.Create(resource.KindEntries, &entriesObj{})
		if err != nil {
			return fault(CodeBadArguments)
		}
		return ok(uint64(h))
	case mdataffi.FnEntriesInsert:
		return d.entriesInsert(args)
	case mdataffi.FnEntriesLen:
		return withHandle(d, args, func(e *entriesObj, _ []uint64) mdataffi.Completion {
			return ok(uint64(len(e.entries)))
		})
	case mdataffi.FnEntriesGet:
		return d.entriesGet(args)
	case mdataffi.FnEntriesFree:
		return d.freeHandle(args, resource.KindEntries)
	case mdataffi.FnEntryActionsNew:
		h, err := d.arena.Create(resource.KindEntryActions, &actionsObj{})
		if err != nil {
			return fault(CodeBadArguments)
		}
		return ok(uint64(h))
	case mdataffi.FnEntryActionsInsert:
		return d.actionsAdd(args, actionInsert, false)
	case mdataffi.FnEntryActionsUpdate:
		return d.actionsAdd(args, actionUpdate, true)
	case mdataffi.FnEntryActionsDelete:
		return d.actionsDelete(args)
	case mdataffi.FnEntryActionsFree:
		return d.freeHandle(args, resource.KindEntryActions)
	case mdataffi.FnEncodeMetadata:
		return d.encodeMetadata(args)
	default:
		return fault(CodeNoSuchFunction)
	}
}

// readInfo decodes an Info struct at args[0].
func (d *LocalDispatcher) readInfo(args []uint64) (wire.Info, mdataffi.Completion, bool) {
	if len(args) < 1 || args[0] == 0 {
		return wire.Info{}, fault(CodeBadArguments), false
	}
	dec := wire.NewDecoder(d.mem)
	info, err := dec.DecodeInfo(uint32(args[0]))
	if err != nil {
		return wire.Info{}, fault(CodeBadArguments), false
	}
	return info, mdataffi.Completion{}, true
}

func (d *LocalDispatcher) withObject(args []uint64, fn func(*mdObject) mdataffi.Completion) mdataffi.Completion {
	info, c, okRead := d.readInfo(args)
	if !okRead {
		return c
	}
	obj, exists := d.objects[objKey{name: info.Name, tag: info.TypeTag}]
	if !exists {
		return fault(CodeNoSuchData)
	}
	return fn(obj)
}

func withHandle[T any](d *LocalDispatcher, args []uint64, fn func(T, []uint64) mdataffi.Completion) mdataffi.Completion {
	if len(args) < 1 {
		return fault(CodeBadArguments)
	}
	value, found := d.arena.Get(resource.Handle(args[0]))
	if !found {
		return fault(CodeInvalidHandle)
	}
	payload, isT := value.(T)
	if !isT {
		return fault(CodeInvalidHandle)
	}
	return fn(payload, args[1:])
}

func (d *LocalDispatcher) freeHandle(args []uint64, kind resource.Kind) mdataffi.Completion {
	if len(args) < 1 {
		return fault(CodeBadArguments)
	}
	h := resource.Handle(args[0])
	if k, found := d.arena.KindOf(h); !found || k != kind {
		return fault(CodeInvalidHandle)
	}
	if _, released := d.arena.Release(h); !released {
		return fault(CodeInvalidHandle)
	}
	return ok()
}

func (d *LocalDispatcher) infoSerialise(args []uint64) mdataffi.Completion {
	info, c, okRead := d.readInfo(args)
	if !okRead {
		return c
	}
	enc := wire.NewEncoder(d.mem, d.alloc)
	buf := make([]byte, 8+wire.InfoSize)
	copy(buf[:4], []byte("MDI1"))
	binary.LittleEndian.PutUint32(buf[4:8], wire.InfoSize)
	tmp := newLocalMemory()
	tmpEnc := wire.NewEncoder(tmp, &localAllocator{mem: tmp})
	ptr, err := tmpEnc.EncodeInfo(info)
	if err != nil {
		return fault(CodeBadArguments)
	}
	raw, err := tmp.Read(ptr, wire.InfoSize)
	if err != nil {
		return fault(CodeBadArguments)
	}
	copy(buf[8:], raw)
	outPtr, _, err := enc.EncodeBytes(buf)
	if err != nil {
		return fault(CodeBadArguments)
	}
	return ok(uint64(outPtr), uint64(len(buf)))
}

func (d *LocalDispatcher) infoDeserialise(args []uint64) mdataffi.Completion {
	if len(args) < 2 || args[0] == 0 {
		return fault(CodeBadArguments)
	}
	dec := wire.NewDecoder(d.mem)
	data, err := dec.DecodeBytes(uint32(args[0]), uint32(args[1]))
	if err != nil || len(data) != 8+wire.InfoSize || !bytes.Equal(data[:4], []byte("MDI1")) {
		return fault(CodeBadArguments)
	}
	ptr, err := d.alloc.Alloc(wire.InfoSize, 8)
	if err != nil {
		return fault(CodeBadArguments)
	}
	if err := d.mem.Write(ptr, data[8:]); err != nil {
		return fault(CodeBadArguments)
	}
	return ok(uint64(ptr))
}

func (d *LocalDispatcher) put(args []uint64) mdataffi.Completion {
	if len(args) < 3 {
		return fault(CodeBadArguments)
	}
	info, c, okRead := d.readInfo(args)
	if !okRead {
		return c
	}
	key := objKey{name: info.Name, tag: info.TypeTag}
	if _, exists := d.objects[key]; exists {
		return fault(CodeDataExists)
	}
	permsVal, found := d.arena.GetTyped(resource.Handle(args[1]), resource.KindPermissions)
	if !found {
		return fault(CodeInvalidHandle)
	}
	perms := permsVal.(*permsObj)
	seedVal, found := d.arena.GetTyped(resource.Handle(args[2]), resource.KindEntries)
	if !found {
		return fault(CodeInvalidHandle)
	}
	seed := seedVal.(*entriesObj)
	obj := &mdObject{
		entries: make(map[string]wire.Value, len(seed.entries)),
		perms:   make(map[wire.SignKeyHandle]wire.PermissionSet, len(perms.sets)),
	}
	for _, ups := range perms.sets {
		obj.perms[ups.User] = ups.Perms
	}
	for _, e := range seed.entries {
		obj.entries[string(e.Key)] = wire.Value{
			Content: append([]byte(nil), e.Value.Content...),
			Version: 0,
		}
	}
	d.objects[key] = obj
	return ok()
}

func (d *LocalDispatcher) getValue(args []uint64) mdataffi.Completion {
	if len(args) < 3 {
		return fault(CodeBadArguments)
	}
	return d.withObject(args, func(obj *mdObject) mdataffi.Completion {
		dec := wire.NewDecoder(d.mem)
		key, err := dec.DecodeBytes(uint32(args[1]), uint32(args[2]))
		if err != nil {
			return fault(CodeBadArguments)
		}
		val, exists := obj.entries[string(key)]
		if !exists {
			return fault(CodeNoSuchEntry)
		}
		enc := wire.NewEncoder(d.mem, d.alloc)
		ptr, length, err := enc.EncodeBytes(val.Content)
		if err != nil {
			return fault(CodeBadArguments)
		}
		return ok(uint64(ptr), uint64(length), val.Version)
	})
}

// sortedEntries returns the object's entries in deterministic key order.
func sortedEntries(obj *mdObject) []wire.Entry {
	keys := make([]string, 0, len(obj.entries))
	for k := range obj.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]wire.Entry, 0, len(keys))
	for _, k := range keys {
		v := obj.entries[k]
		out = append(out, wire.Entry{
			Key: []byte(k),
			Value: wire.Value{
				Content: append([]byte(nil), v.Content...),
				Version: v.Version,
			},
		})
	}
	return out
}

func (d *LocalDispatcher) listEntries(args []uint64) mdataffi.Completion {
	return d.withObject(args, func(obj *mdObject) mdataffi.Completion {
		enc := wire.NewEncoder(d.mem, d.alloc)
		entries := sortedEntries(obj)
		ptr, count, err := enc.EncodeEntries(entries)
		if err != nil {
			return fault(CodeBadArguments)
		}
		return ok(uint64(ptr), uint64(count))
	})
}

func (d *LocalDispatcher) listKeys(args []uint64) mdataffi.Completion {
	return d.withObject(args, func(obj *mdObject) mdataffi.Completion {
		entries := sortedEntries(obj)
		keys := make([][]byte, 0, len(entries))
		for _, e := range entries {
			keys = append(keys, e.Key)
		}
		enc := wire.NewEncoder(d.mem, d.alloc)
		ptr, count, err := enc.EncodeKeys(keys)
		if err != nil {
			return fault(CodeBadArguments)
		}
		return ok(uint64(ptr), uint64(count))
	})
}

func (d *LocalDispatcher) listValues(args []uint64) mdataffi.Completion {
	return d.withObject(args, func(obj *mdObject) mdataffi.Completion {
		entries := sortedEntries(obj)
		values := make([]wire.Value, 0, len(entries))
		for _, e := range entries {
			values = append(values, e.Value)
		}
		enc := wire.NewEncoder(d.mem, d.alloc)
		ptr, count, err := enc.EncodeValues(values)
		if err != nil {
			return fault(CodeBadArguments)
		}
		return ok(uint64(ptr), uint64(count))
	})
}

func (d *LocalDispatcher) mutateEntries(args []uint64) mdataffi.Completion {
	if len(args) < 2 {
		return fault(CodeBadArguments)
	}
	return d.withObject(args, func(obj *mdObject) mdataffi.Completion {
		batchVal, found := d.arena.GetTyped(resource.Handle(args[1]), resource.KindEntryActions)
		if !found {
			return fault(CodeInvalidHandle)
		}
		batch := batchVal.(*actionsObj)
		// Validate the whole batch before touching the object.
		for _, act := range batch.actions {
			cur, exists := obj.entries[string(act.key)]
			switch act.kind {
			case actionInsert:
				if exists {
					return fault(CodeEntryExists)
				}
			case actionUpdate, actionDelete:
				if !exists {
					return fault(CodeNoSuchEntry)
				}
				if act.version != cur.Version+1 {
					return fault(CodeVersionMismatch)
				}
			}
		}
		for _, act := range batch.actions {
			switch act.kind {
			case actionInsert:
				obj.entries[string(act.key)] = wire.Value{
					Content: append([]byte(nil), act.content...),
					Version: 0,
				}
			case actionUpdate:
				obj.entries[string(act.key)] = wire.Value{
					Content: append([]byte(nil), act.content...),
					Version: act.version,
				}
			case actionDelete:
				// Deletes keep a tombstone with an empty content and the
				// bumped version, matching the network's entry history.
				obj.entries[string(act.key)] = wire.Value{
					Content: []byte{},
					Version: act.version,
				}
			}
		}
		return ok()
	})
}

func (d *LocalDispatcher) listPermissions(args []uint64) mdataffi.Completion {
	return d.withObject(args, func(obj *mdObject) mdataffi.Completion {
		sets := make([]wire.UserPermissionSet, 0, len(obj.perms))
		for user, ps := range obj.perms {
			sets = append(sets, wire.UserPermissionSet{User: user, Perms: ps})
		}
		h, err := d.arena.Create(resource.KindPermissions, &permsObj{sets: sets})
		if err != nil {
			return fault(CodeBadArguments)
		}
		return ok(uint64(h))
	})
}

func (d *LocalDispatcher) listPermissionSets(args []uint64) mdataffi.Completion {
	return withHandle(d, args, func(p *permsObj, _ []uint64) mdataffi.Completion {
		enc := wire.NewEncoder(d.mem, d.alloc)
		ptr, count, err := enc.EncodeUserPermissionSets(p.sets)
		if err != nil {
			return fault(CodeBadArguments)
		}
		return ok(uint64(ptr), uint64(count))
	})
}

func (d *LocalDispatcher) listUserPermissions(args []uint64) mdataffi.Completion {
	if len(args) < 2 {
		return fault(CodeBadArguments)
	}
	return d.withObject(args, func(obj *mdObject) mdataffi.Completion {
		ps, exists := obj.perms[wire.SignKeyHandle(args[1])]
		if !exists {
			return fault(CodeNoSuchKey)
		}
		enc := wire.NewEncoder(d.mem, d.alloc)
		ptr, err := enc.EncodePermissionSet(ps)
		if err != nil {
			return fault(CodeBadArguments)
		}
		return ok(uint64(ptr))
	})
}

func (d *LocalDispatcher) setUserPermissions(args []uint64) mdataffi.Completion {
	if len(args) < 4 {
		return fault(CodeBadArguments)
	}
	return d.withObject(args, func(obj *mdObject) mdataffi.Completion {
		dec := wire.NewDecoder(d.mem)
		ps, err := dec.DecodePermissionSet(uint32(args[2]))
		if err != nil {
			return fault(CodeBadArguments)
		}
		if args[3] != obj.permsVersion+1 {
			return fault(CodeVersionMismatch)
		}
		obj.perms[wire.SignKeyHandle(args[1])] = ps
		obj.permsVersion = args[3]
		return ok()
	})
}

func (d *LocalDispatcher) delUserPermissions(args []uint64) mdataffi.Completion {
	if len(args) < 3 {
		return fault(CodeBadArguments)
	}
	return d.withObject(args, func(obj *mdObject) mdataffi.Completion {
		user := wire.SignKeyHandle(args[1])
		if _, exists := obj.perms[user]; !exists {
			return fault(CodeNoSuchKey)
		}
		if args[2] != obj.permsVersion+1 {
			return fault(CodeVersionMismatch)
		}
		delete(obj.perms, user)
		obj.permsVersion = args[2]
		return ok()
	})
}

func (d *LocalDispatcher) permissionsGet(args []uint64) mdataffi.Completion {
	if len(args) < 2 {
		return fault(CodeBadArguments)
	}
	return withHandle(d, args, func(p *permsObj, rest []uint64) mdataffi.Completion {
		user := wire.SignKeyHandle(rest[0])
		for _, ups := range p.sets {
			if ups.User == user {
				enc := wire.NewEncoder(d.mem, d.alloc)
				ptr, err := enc.EncodePermissionSet(ups.Perms)
				if err != nil {
					return fault(CodeBadArguments)
				}
				return ok(uint64(ptr))
			}
		}
		return fault(CodeNoSuchKey)
	})
}

func (d *LocalDispatcher) permissionsInsert(args []uint64) mdataffi.Completion {
	if len(args) < 3 {
		return fault(CodeBadArguments)
	}
	return withHandle(d, args, func(p *permsObj, rest []uint64) mdataffi.Completion {
		dec := wire.NewDecoder(d.mem)
		ps, err := dec.DecodePermissionSet(uint32(rest[1]))
		if err != nil {
			return fault(CodeBadArguments)
		}
		user := wire.SignKeyHandle(rest[0])
		for i := range p.sets {
			if p.sets[i].User == user {
				p.sets[i].Perms = ps
				return ok()
			}
		}
		p.sets = append(p.sets, wire.UserPermissionSet{User: user, Perms: ps})
		return ok()
	})
}

func (d *LocalDispatcher) entriesInsert(args []uint64) mdataffi.Completion {
	if len(args) < 5 {
		return fault(CodeBadArguments)
	}
	return withHandle(d, args, func(e *entriesObj, rest []uint64) mdataffi.Completion {
		dec := wire.NewDecoder(d.mem)
		key, err := dec.DecodeBytes(uint32(rest[0]), uint32(rest[1]))
		if err != nil {
			return fault(CodeBadArguments)
		}
		for _, existing := range e.entries {
			if bytes.Equal(existing.Key, key) {
				return fault(CodeEntryExists)
			}
		}
		content, err := dec.DecodeBytes(uint32(rest[2]), uint32(rest[3]))
		if err != nil {
			return fault(CodeBadArguments)
		}
		e.entries = append(e.entries, wire.Entry{
			Key:   key,
			Value: wire.Value{Content: content, Version: 0},
		})
		return ok()
	})
}

func (d *LocalDispatcher) entriesGet(args []uint64) mdataffi.Completion {
	if len(args) < 3 {
		return fault(CodeBadArguments)
	}
	return withHandle(d, args, func(e *entriesObj, rest []uint64) mdataffi.Completion {
		dec := wire.NewDecoder(d.mem)
		key, err := dec.DecodeBytes(uint32(rest[0]), uint32(rest[1]))
		if err != nil {
			return fault(CodeBadArguments)
		}
		for _, existing := range e.entries {
			if bytes.Equal(existing.Key, key) {
				enc := wire.NewEncoder(d.mem, d.alloc)
				ptr, length, err := enc.EncodeBytes(existing.Value.Content)
				if err != nil {
					return fault(CodeBadArguments)
				}
				return ok(uint64(ptr), uint64(length), existing.Value.Version)
			}
		}
		return fault(CodeNoSuchEntry)
	})
}

func (d *LocalDispatcher) actionsAdd(args []uint64, kind actionKind, versioned bool) mdataffi.Completion {
	want := 5
	if versioned {
		want = 6
	}
	if len(args) < want {
		return fault(CodeBadArguments)
	}
	return withHandle(d, args, func(a *actionsObj, rest []uint64) mdataffi.Completion {
		dec := wire.NewDecoder(d.mem)
		key, err := dec.DecodeBytes(uint32(rest[0]), uint32(rest[1]))
		if err != nil {
			return fault(CodeBadArguments)
		}
		content, err := dec.DecodeBytes(uint32(rest[2]), uint32(rest[3]))
		if err != nil {
			return fault(CodeBadArguments)
		}
		act := entryAction{kind: kind, key: key, content: content}
		if versioned {
			act.version = rest[4]
		}
		a.actions = append(a.actions, act)
		return ok()
	})
}

func (d *LocalDispatcher) actionsDelete(args []uint64) mdataffi.Completion {
	if len(args) < 4 {
		return fault(CodeBadArguments)
	}
	return withHandle(d, args, func(a *actionsObj, rest []uint64) mdataffi.Completion {
		dec := wire.NewDecoder(d.mem)
		key, err := dec.DecodeBytes(uint32(rest[0]), uint32(rest[1]))
		if err != nil {
			return fault(CodeBadArguments)
		}
		a.actions = append(a.actions, entryAction{
			kind:    actionDelete,
			key:     key,
			version: rest[2],
		})
		return ok()
	})
}

func (d *LocalDispatcher) encodeMetadata(args []uint64) mdataffi.Completion {
	if len(args) < 1 || args[0] == 0 {
		return fault(CodeBadArguments)
	}
	dec := wire.NewDecoder(d.mem)
	meta, err := dec.DecodeMetadata(uint32(args[0]))
	if err != nil {
		return fault(CodeBadArguments)
	}
	buf := make([]byte, 0, 8+len(meta.Name)+len(meta.Description))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(meta.Name)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, meta.Name...)
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(meta.Description)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, meta.Description...)
	enc := wire.NewEncoder(d.mem, d.alloc)
	ptr, length, err := enc.EncodeBytes(buf)
	if err != nil {
		return fault(CodeBadArguments)
	}
	return ok(uint64(ptr), uint64(length))
}

// localMemory is a growable flat buffer implementing mdataffi.Memory.
// Address 0 is never handed out so a zero pointer stays invalid.
type localMemory struct {
	mu  sync.RWMutex
	buf []byte
}

func newLocalMemory() *localMemory {
	return &localMemory{buf: make([]byte, 64*1024)}
}

func (m *localMemory) ensure(end uint32) {
	if int(end) <= len(m.buf) {
		return
	}
	grown := make([]byte, int(end)*2)
	copy(grown, m.buf)
	m.buf = grown
}

func (m *localMemory) Read(offset uint32, length uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.buf)) {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	out := make([]byte, length)
	copy(out, m.buf[offset:end])
	return out, nil
}

func (m *localMemory) Write(offset uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(offset + uint32(len(data)))
	copy(m.buf[offset:], data)
	return nil
}

func (m *localMemory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *localMemory) ReadU16(offset uint32) (uint16, error) {
	b, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *localMemory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *localMemory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *localMemory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *localMemory) WriteU16(offset uint32, value uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], value)
	return m.Write(offset, b[:])
}

func (m *localMemory) WriteU32(offset uint32, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return m.Write(offset, b[:])
}

func (m *localMemory) WriteU64(offset uint32, value uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	return m.Write(offset, b[:])
}

// localAllocator is a bump allocator over localMemory with live-allocation
// accounting, so tests can assert the client freed everything it encoded.
type localAllocator struct {
	mu   sync.Mutex
	mem  *localMemory
	next uint32
	live map[uint32]uint32
}

func (a *localAllocator) Alloc(size, align uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.next == 0 {
		a.next = 1024
		a.live = make(map[uint32]uint32)
	}
	if align == 0 {
		align = 1
	}
	ptr := (a.next + align - 1) &^ (align - 1)
	a.next = ptr + size
	a.mem.Write(ptr, make([]byte, size))
	a.live[ptr] = size
	return ptr, nil
}

func (a *localAllocator) Free(ptr, size, align uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.live, ptr)
}

// Outstanding returns the number of allocations not yet freed.
func (a *localAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}
