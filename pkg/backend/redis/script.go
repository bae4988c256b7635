package redis

import "github.com/redis/go-redis/v9"

// addScript inserts a brand-new record, atomically rejecting it if the id
// or any unique-indexed field already exists.
//
// KEYS: [1]=record hash key [2]=ids set key
// ARGV: [1]=id
//
//	[2]=n, then n*(attr, uniqueKey) pairs
//	[next]=m, then m secondaryIndexKeys
//	[next]=f, then f*(field, value) pairs to HSET
var addScript = redis.NewScript(`
local id = ARGV[1]
local idx = 2
local n = tonumber(ARGV[idx]); idx = idx + 1
local uAttr, uKey = {}, {}
for i = 1, n do
  uAttr[i] = ARGV[idx]; idx = idx + 1
  uKey[i] = ARGV[idx]; idx = idx + 1
end
local m = tonumber(ARGV[idx]); idx = idx + 1
local secKey = {}
for i = 1, m do
  secKey[i] = ARGV[idx]; idx = idx + 1
end
local f = tonumber(ARGV[idx]); idx = idx + 1
local fields = {}
for i = 1, f do
  fields[#fields+1] = ARGV[idx]; idx = idx + 1
  fields[#fields+1] = ARGV[idx]; idx = idx + 1
end

if redis.call('EXISTS', KEYS[1]) == 1 then
  return redis.error_reply('duplicate:id')
end
for i = 1, n do
  if redis.call('EXISTS', uKey[i]) == 1 then
    return redis.error_reply('duplicate:' .. uAttr[i])
  end
end

if f > 0 then
  redis.call('HSET', KEYS[1], unpack(fields))
end
redis.call('SADD', KEYS[2], id)
for i = 1, n do
  redis.call('SET', uKey[i], id)
end
for i = 1, m do
  redis.call('SADD', secKey[i], id)
end
return redis.status_reply('OK')
`)

// updateScript merges fields into an existing record, atomically rejecting
// the update if a changed unique field's new value is already taken by
// another record, then reindexes every changed unique/secondary field.
//
// KEYS: [1]=record hash key
// ARGV: [1]=id
//
//	[2]=n, then n*(attr, newUniqueKey, oldUniqueKeyOrEmpty)
//	[next]=s, then s*(newIndexKey, oldIndexKeyOrEmpty)
//	[next]=f, then f*(field, value) pairs to HSET
var updateScript = redis.NewScript(`
local id = ARGV[1]
local idx = 2
local n = tonumber(ARGV[idx]); idx = idx + 1
local ua, unew, uold = {}, {}, {}
for i = 1, n do
  ua[i] = ARGV[idx]; idx = idx + 1
  unew[i] = ARGV[idx]; idx = idx + 1
  uold[i] = ARGV[idx]; idx = idx + 1
end
local s = tonumber(ARGV[idx]); idx = idx + 1
local snew, sold = {}, {}
for i = 1, s do
  snew[i] = ARGV[idx]; idx = idx + 1
  sold[i] = ARGV[idx]; idx = idx + 1
end
local f = tonumber(ARGV[idx]); idx = idx + 1
local fields = {}
for i = 1, f do
  fields[#fields+1] = ARGV[idx]; idx = idx + 1
  fields[#fields+1] = ARGV[idx]; idx = idx + 1
end

for i = 1, n do
  if unew[i] ~= uold[i] then
    if redis.call('EXISTS', unew[i]) == 1 then
      return redis.error_reply('duplicate:' .. ua[i])
    end
  end
end

if f > 0 then
  redis.call('HSET', KEYS[1], unpack(fields))
end
for i = 1, n do
  if unew[i] ~= uold[i] then
    if uold[i] ~= '' then redis.call('DEL', uold[i]) end
    redis.call('SET', unew[i], id)
  end
end
for i = 1, s do
  if snew[i] ~= sold[i] then
    if sold[i] ~= '' then redis.call('SREM', sold[i], id) end
    redis.call('SADD', snew[i], id)
  end
end
return redis.status_reply('OK')
`)

// removeScript deletes a record and every index entry pointing at it.
//
// KEYS: [1]=record hash key [2]=ids set key
// ARGV: [1]=id [2]=n, then n uniqueKeys [next]=m, then m secondaryIndexKeys
var removeScript = redis.NewScript(`
local id = ARGV[1]
local idx = 2
local n = tonumber(ARGV[idx]); idx = idx + 1
local uKey = {}
for i = 1, n do
  uKey[i] = ARGV[idx]; idx = idx + 1
end
local m = tonumber(ARGV[idx]); idx = idx + 1
local secKey = {}
for i = 1, m do
  secKey[i] = ARGV[idx]; idx = idx + 1
end

redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], id)
for i = 1, n do
  redis.call('DEL', uKey[i])
end
for i = 1, m do
  redis.call('SREM', secKey[i], id)
end
return redis.status_reply('OK')
`)
